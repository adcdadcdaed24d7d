package telegram

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStitchPagesVertical(t *testing.T) {
	pages := [][]byte{
		encodePNG(t, 3, 2, color.Black),
		encodePNG(t, 2, 4, color.White),
	}

	out, err := stitchPages(pages)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 3, img.Bounds().Dx())
	require.Equal(t, 6, img.Bounds().Dy())
}

func TestStitchPagesBadInput(t *testing.T) {
	_, err := stitchPages([][]byte{[]byte("это не картинка")})
	require.Error(t, err)
}

func TestEnqueueAndClaimBatch(t *testing.T) {
	r := &Router{}
	const key = "grp:test-claim"

	require.True(t, r.enqueuePage(7, key, []byte("p1")))
	require.False(t, r.enqueuePage(7, key, []byte("p2")))

	chatID, images, ok := claimBatch(key)
	require.True(t, ok)
	require.Equal(t, int64(7), chatID)
	require.Len(t, images, 2)

	_, _, ok = claimBatch(key)
	require.False(t, ok, "claimed batch must be gone")
}

// Страница, пришедшая после закрытия батча, не теряется: она открывает
// свежий батч под тем же ключом.
func TestLatePageStartsFreshBatch(t *testing.T) {
	r := &Router{}
	const key = "grp:test-late"

	r.enqueuePage(7, key, []byte("p1"))
	_, _, ok := claimBatch(key)
	require.True(t, ok)

	require.True(t, r.enqueuePage(7, key, []byte("p2")), "late page must open a new batch")

	_, images, ok := claimBatch(key)
	require.True(t, ok)
	require.Len(t, images, 1)
}
