package engine

import (
	iface "FrameAnnotator/interface"
)

var gauss5 = [5]int{1, 4, 6, 4, 1}

// PyrDown smooths src with a 5x5 Gaussian and drops every other row and
// column. The result is ((w+1)/2, (h+1)/2); borders reflect without
// repeating the edge pixel.
func PyrDown(src iface.Frame) (iface.Frame, error) {
	if err := src.Validate(); err != nil {
		return iface.Frame{}, err
	}
	dw, dh := (src.Width+1)/2, (src.Height+1)/2
	dst := iface.NewFrame(dw, dh, src.Layout)
	ch := src.Layout.Channels()
	stride := src.Stride()

	var rows [5]int
	cols := make([][5]int, dw)
	for x := 0; x < dw; x++ {
		for j := 0; j < 5; j++ {
			cols[x][j] = reflect101(2*x+j-2, src.Width) * ch
		}
	}
	for y := 0; y < dh; y++ {
		for i := 0; i < 5; i++ {
			rows[i] = reflect101(2*y+i-2, src.Height) * stride
		}
		out := dst.Pix[y*dst.Stride():]
		for x := 0; x < dw; x++ {
			for c := 0; c < ch; c++ {
				sum := 0
				for i := 0; i < 5; i++ {
					row := rows[i] + c
					acc := 0
					for j := 0; j < 5; j++ {
						acc += gauss5[j] * int(src.Pix[row+cols[x][j]])
					}
					sum += gauss5[i] * acc
				}
				out[x*ch+c] = uint8((sum + 128) >> 8)
			}
		}
	}
	return dst, nil
}

func reflect101(p, n int) int {
	if n == 1 {
		return 0
	}
	for p < 0 || p >= n {
		if p < 0 {
			p = -p
		}
		if p >= n {
			p = 2*n - 2 - p
		}
	}
	return p
}
