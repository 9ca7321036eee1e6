package bookings

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

// ReceiptGenerator issues the QR receipt attached to a booking at payment.
// The payload is AES-encrypted so a scanned receipt can be validated at
// boarding without exposing booking details.
type ReceiptGenerator struct {
	secret []byte
}

func NewReceiptGenerator(secret string) *ReceiptGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &ReceiptGenerator{secret: hashed[:]}
}

type receiptPayload struct {
	BookingID  string    `json:"booking_id"`
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	Quantity   int       `json:"quantity"`
	TotalPrice float64   `json:"total_price"`
	PaidAt     time.Time `json:"paid_at"`
	Reference  string    `json:"reference"`
}

// Generate returns a 256x256 PNG QR of the encrypted receipt payload.
func (g *ReceiptGenerator) Generate(bookingID, ticketID, userID string, quantity int, totalPrice float64, paidAt time.Time, reference string) ([]byte, error) {
	data, err := json.Marshal(receiptPayload{
		BookingID:  bookingID,
		TicketID:   ticketID,
		UserID:     userID,
		Quantity:   quantity,
		TotalPrice: totalPrice,
		PaidAt:     paidAt,
		Reference:  reference,
	})
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
