package credential

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"regexp"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// DefaultSize is the pixel width and height of rendered credentials.
const DefaultSize = 400

// minModulePixels is the smallest module scale the decoder reads reliably.
const minModulePixels = 4

var (
	// ErrInvalidPayload is returned when a payload field is missing.
	ErrInvalidPayload = errors.New("credential payload requires teamId, eventId and token")
	// ErrUnreadableImage is returned when no credential can be read from an image.
	ErrUnreadableImage = errors.New("no readable credential in image")
	// ErrPayloadTooLarge is returned when a payload cannot be rendered at a
	// decodable scale for the codec's size.
	ErrPayloadTooLarge = errors.New("credential payload too large for image size")
)

// Payload is what a credential image carries. Field names are the wire contract
// shared with scanning clients.
type Payload struct {
	TeamID  string `json:"teamId"`
	EventID string `json:"eventId"`
	Token   string `json:"token"`
}

// Validate reports whether every field is populated.
func (p Payload) Validate() error {
	if p.TeamID == "" || p.EventID == "" || p.Token == "" {
		return ErrInvalidPayload
	}
	return nil
}

// Codec renders payloads as QR images and reads them back.
type Codec struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewCodec returns a codec rendering size x size PNGs at error-correction
// level Q (25%). A non-positive size falls back to DefaultSize.
func NewCodec(size int) *Codec {
	if size <= 0 {
		size = DefaultSize
	}
	return &Codec{size: size, level: qrcode.High}
}

// Encode renders the payload as a PNG QR code.
func (c *Codec) Encode(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	q, err := qrcode.New(string(bytes.TrimSpace(buf.Bytes())), c.level)
	if err != nil {
		return nil, errors.Join(ErrPayloadTooLarge, err)
	}
	img, err := c.render(q.Bitmap())
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	pngEnc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := pngEnc.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return out.Bytes(), nil
}

// render draws bitmap (quiet zone included) at a whole number of pixels per
// module, centred on a size x size canvas. Fractional scaling yields uneven
// module widths that the decoder misreads on dense symbols.
func (c *Codec) render(bitmap [][]bool) (image.Image, error) {
	modules := len(bitmap)
	scale := c.size / modules
	if scale < minModulePixels {
		return nil, fmt.Errorf("%w: %d modules at %dpx", ErrPayloadTooLarge, modules, c.size)
	}
	img := image.NewPaletted(image.Rect(0, 0, c.size, c.size), color.Palette{color.White, color.Black})
	offset := (c.size - modules*scale) / 2
	for y, row := range bitmap {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0, y0 := offset+x*scale, offset+y*scale
			for py := y0; py < y0+scale; py++ {
				for px := x0; px < x0+scale; px++ {
					img.SetColorIndex(px, py, 1)
				}
			}
		}
	}
	return img, nil
}

// Decode reads a payload from a PNG or JPEG image. The result is untrusted and
// must still be redeemed through signature verification.
func (c *Codec) Decode(data []byte) (Payload, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Payload{}, errors.Join(ErrUnreadableImage, err)
	}
	text, err := readQR(img)
	if err != nil {
		return Payload{}, errors.Join(ErrUnreadableImage, err)
	}
	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Payload{}, errors.Join(ErrUnreadableImage, err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func readQR(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", err
	}
	reader := zxqr.NewQRCodeReader()
	// Unmodified renders are pure symbols and read directly; camera captures
	// need the finder-pattern search.
	pure := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_PURE_BARCODE:  true,
		gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
	}
	if res, err := reader.Decode(bmp, pure); err == nil {
		return res.GetText(), nil
	}
	reader.Reset()
	res, err := reader.Decode(bmp, map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER:    true,
		gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
	})
	if err != nil {
		return "", err
	}
	return res.GetText(), nil
}

var whitespace = regexp.MustCompile(`\s+`)

// FileName is the download name for a team's credential image.
func FileName(teamName, teamID string) string {
	return fmt.Sprintf("qr-%s-%s.png", whitespace.ReplaceAllString(teamName, "-"), teamID)
}
