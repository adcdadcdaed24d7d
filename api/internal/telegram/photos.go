package telegram

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	debounce  = 1200 * time.Millisecond
	maxPixels = 18_000_000
)

// Длинный чек приходит альбомом из нескольких фото: копим страницы до паузы
// в debounce и склеиваем вертикально перед распознаванием.
type photoBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
	closed bool // батч забран на склейку, страницы больше не принимает
}

var batches sync.Map // key -> *photoBatch

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1] // самый крупный размер
	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: ph.FileID})
	if err != nil {
		r.send(cid, "Не удалось получить фото. Пришлите ещё раз.")
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", r.Bot.Token, file.FilePath)
	imgBytes, err := download(url)
	if err != nil {
		r.send(cid, "Не удалось скачать фото. Пришлите ещё раз.")
		return
	}

	key := "chat:" + fmt.Sprint(cid)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}

	if r.enqueuePage(cid, key, imgBytes) {
		r.send(cid, r.PhotoAcceptedText())
	}
}

// enqueuePage кладёт страницу в батч и перезапускает таймер склейки.
// Если батч уже закрыт (таймер успел сработать), страница не теряется,
// а открывает свежий батч. Возвращает true для первой страницы.
func (r *Router) enqueuePage(chatID int64, key string, img []byte) bool {
	for {
		bi, _ := batches.LoadOrStore(key, &photoBatch{
			ChatID: chatID, Key: key, images: make([][]byte, 0, 4),
		})
		b := bi.(*photoBatch)

		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			batches.CompareAndDelete(key, bi)
			continue
		}
		b.images = append(b.images, img)
		first := len(b.images) == 1
		if b.timer != nil {
			b.timer.Stop()
		}
		b.timer = time.AfterFunc(debounce, func() { r.processBatch(key) })
		b.mu.Unlock()
		return first
	}
}

// claimBatch закрывает батч и забирает накопленные страницы.
func claimBatch(key string) (int64, [][]byte, bool) {
	bi, ok := batches.Load(key)
	if !ok {
		return 0, nil, false
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	images := append([][]byte(nil), b.images...)
	chatID := b.ChatID
	b.mu.Unlock()

	// не трогаем возможную замену от enqueuePage
	batches.CompareAndDelete(key, bi)
	return chatID, images, len(images) > 0
}

func (r *Router) processBatch(key string) {
	chatID, images, ok := claimBatch(key)
	if !ok {
		return
	}

	merged, err := stitchPages(images)
	if err != nil {
		r.send(chatID, "Не удалось склеить фото. Пришлите чек одним снимком.")
		return
	}

	r.deliver(chatID, r.Dialog.HandlePhoto(context.Background(), chatID, merged))
}

// stitchPages склеивает страницы чека вертикально по центру на белом фоне
// и ужимает итог под лимит пикселей.
func stitchPages(images [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	widths := make([]int, 0, len(images))
	heights := make([]int, 0, len(images))

	for _, b := range images {
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			if try, err2 := tryDecodeStrict(b); err2 == nil {
				img = try
			} else {
				return nil, err
			}
		}
		decoded = append(decoded, img)
		bounds := img.Bounds()
		widths = append(widths, bounds.Dx())
		heights = append(heights, bounds.Dy())
	}

	maxW := 0
	sumH := 0
	for i := range decoded {
		if widths[i] > maxW {
			maxW = widths[i]
		}
		sumH += heights[i]
	}
	if maxW == 0 || sumH == 0 {
		return nil, fmt.Errorf("пустые изображения")
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, sumH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	y := 0
	for i, img := range decoded {
		w := widths[i]
		h := heights[i]
		x := (maxW - w) / 2
		rect := image.Rect(x, y, x+w, y+h)
		draw.Draw(dst, rect, img, img.Bounds().Min, draw.Over)
		y += h
	}

	totalPx := maxW * sumH
	final := image.Image(dst)
	if totalPx > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(totalPx))
		newW := int(float64(maxW)*scale + 0.5)
		newH := int(float64(sumH)*scale + 0.5)
		if newW < 1 {
			newW = 1
		}
		if newH < 1 {
			newH = 1
		}
		final = scaleDownNN(dst, newW, newH)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, final, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func tryDecodeStrict(b []byte) (image.Image, error) {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return jpeg.Decode(bytes.NewReader(b))
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return png.Decode(bytes.NewReader(b))
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	return img, err
}

func scaleDownNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW := sb.Dx()
	srcH := sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func download(url string) ([]byte, error) {
	resp, err := httpClient().Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}
