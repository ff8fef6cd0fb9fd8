package vec

// Box описывает полуоткрытый регион вокселей [Min, Max).
// Мутаторы мира возвращают Box затронутой области, а операции
// обслуживания (mip, освещение) принимают его явно.
type Box struct {
	Min IVec3
	Max IVec3
}

// BoxFromCorners создаёт Box, включающий оба угла (включительно)
func BoxFromCorners(a, b IVec3) Box {
	lo := a.Min(b)
	hi := a.Max(b)
	return Box{Min: lo, Max: hi.Add(IVec3{X: 1, Y: 1, Z: 1})}
}

// BoxAround возвращает куб со стороной 2*r+1 вокруг центра
func BoxAround(center IVec3, r int) Box {
	return Box{
		Min: center.Sub(IVec3{X: r, Y: r, Z: r}),
		Max: center.Add(IVec3{X: r + 1, Y: r + 1, Z: r + 1}),
	}
}

// Empty проверяет, что регион пуст
func (b Box) Empty() bool {
	return b.Min.X >= b.Max.X || b.Min.Y >= b.Max.Y || b.Min.Z >= b.Max.Z
}

// Union возвращает минимальный регион, содержащий оба региона
func (b Box) Union(other Box) Box {
	if b.Empty() {
		return other
	}
	if other.Empty() {
		return b
	}
	return Box{Min: b.Min.Min(other.Min), Max: b.Max.Max(other.Max)}
}

// Intersect возвращает пересечение регионов
func (b Box) Intersect(other Box) Box {
	r := Box{Min: b.Min.Max(other.Min), Max: b.Max.Min(other.Max)}
	if r.Empty() {
		return Box{}
	}
	return r
}

// Expand расширяет регион на n вокселей во все стороны
func (b Box) Expand(n int) Box {
	if b.Empty() {
		return b
	}
	d := IVec3{X: n, Y: n, Z: n}
	return Box{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// Contains проверяет, что воксель находится в регионе
func (b Box) Contains(p IVec3) bool {
	return p.X >= b.Min.X && p.X < b.Max.X &&
		p.Y >= b.Min.Y && p.Y < b.Max.Y &&
		p.Z >= b.Min.Z && p.Z < b.Max.Z
}

// Size возвращает размеры региона
func (b Box) Size() IVec3 {
	if b.Empty() {
		return IVec3{}
	}
	return b.Max.Sub(b.Min)
}

// Volume возвращает количество вокселей в регионе
func (b Box) Volume() int {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Clip обрезает регион по домену; пустой результат возвращается как Box{}
func (b Box) Clip(domain Box) Box {
	return b.Intersect(domain)
}
