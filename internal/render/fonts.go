package render

import (
	"log"
	"os"
	"path/filepath"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// Fonts holds the faces the pipeline draws text with. Loaded once.
type Fonts struct {
	Small  font.Face
	Medium font.Face
	Large  font.Face
}

// LoadFonts parses the TTF at path (or the first system font found when
// path is empty) into three faces. Without a usable font every face falls
// back to the built-in 7x13 bitmap face so text still renders.
func LoadFonts(path string) Fonts {
	fallback := Fonts{Small: basicfont.Face7x13, Medium: basicfont.Face7x13, Large: basicfont.Face7x13}

	if path == "" {
		path = getFontPath()
	}
	if path == "" {
		log.Println("⚠️ No font found, using built-in bitmap font")
		return fallback
	}

	fontData, err := os.ReadFile(path)
	if err != nil {
		log.Printf("⚠️ Failed to read font file: %v", err)
		return fallback
	}

	parsedFont, err := opentype.Parse(fontData)
	if err != nil {
		log.Printf("⚠️ Failed to parse font: %v", err)
		return fallback
	}

	faces := make([]font.Face, 3)
	for i, size := range []float64{11, 14, 20} {
		faces[i], err = opentype.NewFace(parsedFont, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			log.Printf("⚠️ Failed to create %.0fpt font face: %v", size, err)
			return fallback
		}
	}

	log.Printf("✅ Fonts loaded and cached from: %s", path)
	return Fonts{Small: faces[0], Medium: faces[1], Large: faces[2]}
}

func getFontPath() string {
	// Try common font locations
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/usr/share/fonts/TTF/DejaVuSans.ttf",
		"/System/Library/Fonts/Supplemental/Arial.ttf",
		"C:\\Windows\\Fonts\\arial.ttf",
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	// Try to find any ttf in current directory
	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}

	return ""
}
