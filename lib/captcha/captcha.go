// Package captcha generates the text challenges Cerberus sends over DM and
// renders them into PNG images.
package captcha

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/google/uuid"
	"github.com/uvensys/cerberus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Alphabet is the set of characters a challenge can contain. Lowercase only,
// answers are compared case-insensitively.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Challenge is one captcha issuance. It lives for exactly one verification
// attempt and is never reused.
type Challenge struct {
	ID       string    `json:"id"`       // UUID identifying the challenge
	Text     string    `json:"text"`     // The answer the user must type back
	PNG      []byte    `json:"-"`        // The rendered image
	IssuedAt time.Time `json:"issuedAt"` // When the challenge was issued
}

var loadFace = sync.OnceValues(func() (font.Face, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("captcha: can't parse embedded font: %w", err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    40,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("captcha: can't build font face: %w", err)
	}

	return face, nil
})

// New generates a fresh challenge: random text plus the matching rendered
// image.
func New() (*Challenge, error) {
	text, err := randomText(cerberus.CaptchaLength)
	if err != nil {
		return nil, err
	}

	png, err := render(text)
	if err != nil {
		return nil, err
	}

	return &Challenge{
		ID:       uuid.NewString(),
		Text:     text,
		PNG:      png,
		IssuedAt: time.Now(),
	}, nil
}

// Matches reports whether a user's reply solves the challenge. Comparison is
// case-insensitive and exact otherwise, no trimming.
func (c *Challenge) Matches(reply string) bool {
	if len(reply) != len(c.Text) {
		return false
	}

	for i := 0; i < len(reply); i++ {
		r := reply[i]
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		if r != c.Text[i] {
			return false
		}
	}

	return true
}

func randomText(length int) (string, error) {
	max := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, length)

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("captcha: can't read random bytes: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}

	return string(buf), nil
}

func render(text string) ([]byte, error) {
	face, err := loadFace()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(cerberus.CaptchaWidth, cerberus.CaptchaHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(face)
	dc.SetRGB(0, 0, 0)
	dc.DrawString(text, 50, 60)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("captcha: can't encode image: %w", err)
	}

	return buf.Bytes(), nil
}
