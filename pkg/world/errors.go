package world

import "errors"

var (
	// ErrNotFound файл, ресурс или снимок не найден
	ErrNotFound = errors.New("не найдено")
	// ErrInvalidGeometry вырожденная или некорректная геометрия CSG
	ErrInvalidGeometry = errors.New("некорректная геометрия")
	// ErrCapacityExceeded превышена ёмкость (палитра, число точек)
	ErrCapacityExceeded = errors.New("превышена ёмкость")
	// ErrEngineClosed операция после завершения движка
	ErrEngineClosed = errors.New("движок завершён")
	// ErrBadSnapshot файл снимка повреждён или имеет чужой формат
	ErrBadSnapshot = errors.New("неверный формат снимка мира")
)
