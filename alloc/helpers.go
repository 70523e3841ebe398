package alloc

// isPow2 reports whether v is a non-zero power of two.
func isPow2(v uintptr) bool {
	return v != 0 && v&(v-1) == 0
}

// alignUp rounds v up to align (a power of two). ok is false on overflow.
func alignUp(v, align uintptr) (uintptr, bool) {
	mask := align - 1
	if v > ^uintptr(0)-mask {
		return 0, false
	}
	return (v + mask) &^ mask, true
}

// alignDown rounds v down to align (a power of two).
func alignDown(v, align uintptr) uintptr {
	return v &^ (align - 1)
}

// addOK returns a+b and whether the sum fits in a uintptr.
func addOK(a, b uintptr) (uintptr, bool) {
	sum := a + b
	return sum, sum >= a
}

// mulOK returns a*b and whether the product fits in a uintptr.
func mulOK(a, b uintptr) (uintptr, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	return p, p/b == a
}
