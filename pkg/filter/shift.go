package filter

// Shift rotates v in place so that element 0 moves to the centre, index
// len(v)/2. Applied to an FFT output it centres the zero-frequency bin.
func Shift(v []complex128) {
	rotate(v, len(v)/2)
}

// Unshift undoes Shift, moving the centre element back to index 0.
func Unshift(v []complex128) {
	rotate(v, len(v)-len(v)/2)
}

// rotate moves every element k places to the right, wrapping around. For
// even lengths Shift and Unshift both reduce to swapping the halves.
func rotate(v []complex128, k int) {
	n := len(v)
	if n < 2 || k%n == 0 {
		return
	}
	if 2*k == n {
		half := v[:k]
		for i := range half {
			v[i], v[i+k] = v[i+k], v[i]
		}
		return
	}
	reverse(v)
	reverse(v[:k])
	reverse(v[k:])
}

func reverse(v []complex128) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}
