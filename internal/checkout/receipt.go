package checkout

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/angelmondragon/foodmarketplace/pkg/db/models"
)

const (
	qrPayloadType   = "payment_confirmation"
	qrTimestampForm = "2006-01-02T15:04:05.000Z07:00"

	DefaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024
)

// QRPayload is the JSON document encoded into the confirmation QR code.
type QRPayload struct {
	OrderID   string          `json:"orderId"`
	Total     json.Number     `json:"total"`
	Items     []QRPayloadItem `json:"items"`
	Timestamp string          `json:"timestamp"`
	Merchant  string          `json:"merchant"`
	Type      string          `json:"type"`
}

type QRPayloadItem struct {
	Title    string      `json:"title"`
	Quantity int         `json:"quantity"`
	Price    json.Number `json:"price"`
}

func buildQRPayload(o models.Order, merchant string) QRPayload {
	items := make([]QRPayloadItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, QRPayloadItem{
			Title:    it.Title,
			Quantity: it.Quantity,
			Price:    json.Number(it.UnitPrice.StringFixed(2)),
		})
	}
	return QRPayload{
		OrderID:   o.ID,
		Total:     json.Number(o.Total.StringFixed(2)),
		Items:     items,
		Timestamp: o.CreatedAt.UTC().Format(qrTimestampForm),
		Merchant:  merchant,
		Type:      qrPayloadType,
	}
}

// renderQR encodes payload as a PNG of size×size pixels.
func renderQR(payload QRPayload, size int) ([]byte, error) {
	content, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal qr payload: %w", err)
	}
	png, err := qrcode.Encode(string(content), qrcode.Medium, clampQRSize(size))
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func clampQRSize(size int) int {
	switch {
	case size <= 0:
		return DefaultQRSize
	case size < minQRSize:
		return minQRSize
	case size > maxQRSize:
		return maxQRSize
	}
	return size
}
