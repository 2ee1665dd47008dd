package wallet

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"time"
)

const (
	qrModuleScale = 4
	qrQuietZone   = 4
	paperMargin   = 20

	glyphCols    = 3
	glyphRowsN   = 5
	glyphScale   = 3
	glyphSpacing = 2
	lineSpacing  = 3
)

// ExportPaperWallet renders a PNG at destPath containing a receiving
// address, its matching private key (hex), a QR code for each, and
// the export timestamp. The layout is deliberately plain: this is a
// printable backup, not a polished document.
func ExportPaperWallet(addr, privateKeyHex string, generatedAt time.Time, destPath string) error {
	addrQR, err := encodeQR([]byte(addr))
	if err != nil {
		return fmt.Errorf("encode address QR: %w", err)
	}
	keyQR, err := encodeQR([]byte(privateKeyHex))
	if err != nil {
		return fmt.Errorf("encode private key QR: %w", err)
	}

	lines := []string{
		"ADDRESS",
		strings.ToUpper(addr),
		"",
		"PRIVATE KEY",
		strings.ToUpper(privateKeyHex),
		"",
		"GENERATED " + generatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}

	qrPixels := (qrSize + 2*qrQuietZone) * qrModuleScale
	glyphWidth := glyphCols*glyphScale + glyphSpacing
	glyphHeight := glyphRowsN*glyphScale + lineSpacing

	maxLineLen := 0
	for _, l := range lines {
		if len(l) > maxLineLen {
			maxLineLen = len(l)
		}
	}

	width := 2*paperMargin + 2*qrPixels + paperMargin
	if textWidth := 2*paperMargin + maxLineLen*glyphWidth; textWidth > width {
		width = textWidth
	}
	height := 2*paperMargin + qrPixels + paperMargin + len(lines)*glyphHeight

	img := image.NewGray(image.Rect(0, 0, width, height))
	fillWhite(img)

	drawQR(img, addrQR, paperMargin, paperMargin)
	drawQR(img, keyQR, paperMargin+qrPixels+paperMargin, paperMargin)

	y := 2*paperMargin + qrPixels
	for _, line := range lines {
		drawText(img, line, paperMargin, y)
		y += glyphHeight
	}

	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create paper wallet file: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode paper wallet png: %w", err)
	}
	return nil
}

func fillWhite(img *image.Gray) {
	white := color.Gray{Y: 255}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetGray(x, y, white)
		}
	}
}

func drawQR(img *image.Gray, modules qrModules, originX, originY int) {
	black := color.Gray{Y: 0}
	for r := 0; r < qrSize; r++ {
		for c := 0; c < qrSize; c++ {
			if !modules[r][c] {
				continue
			}
			px := originX + (c+qrQuietZone)*qrModuleScale
			py := originY + (r+qrQuietZone)*qrModuleScale
			for dy := 0; dy < qrModuleScale; dy++ {
				for dx := 0; dx < qrModuleScale; dx++ {
					img.SetGray(px+dx, py+dy, black)
				}
			}
		}
	}
}

func drawText(img *image.Gray, text string, originX, originY int) {
	black := color.Gray{Y: 0}
	glyphWidth := glyphCols*glyphScale + glyphSpacing
	for i, ch := range text {
		baseX := originX + i*glyphWidth
		for row := 0; row < glyphRowsN; row++ {
			for col := 0; col < glyphCols; col++ {
				if !glyphAt(ch, row, col) {
					continue
				}
				px := baseX + col*glyphScale
				py := originY + row*glyphScale
				for dy := 0; dy < glyphScale; dy++ {
					for dx := 0; dx < glyphScale; dx++ {
						img.SetGray(px+dx, py+dy, black)
					}
				}
			}
		}
	}
}
