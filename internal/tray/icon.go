package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 22

var (
	connectedColor    = color.NRGBA{R: 0x2e, G: 0xa0, B: 0x43, A: 0xff}
	disconnectedColor = color.NRGBA{R: 0x8a, G: 0x8a, B: 0x8a, A: 0xff}
)

var (
	connectedIcon    = renderIcon(connectedColor)
	disconnectedIcon = renderIcon(disconnectedColor)
)

// StatusIcon returns a PNG dot, green when the control service is connected
func StatusIcon(connected bool) []byte {
	if connected {
		return connectedIcon
	}
	return disconnectedIcon
}

func renderIcon(c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, iconSize, iconSize))
	center := float64(iconSize-1) / 2
	radius := float64(iconSize)/2 - 2
	for y := 0; y < iconSize; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x)-center, float64(y)-center
			if dx*dx+dy*dy <= radius*radius {
				img.SetNRGBA(x, y, c)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
