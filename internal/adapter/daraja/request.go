package daraja

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"time"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
)

// TransactionType is the only transaction kind this merchant uses.
const TransactionType = "CustomerPayBillOnline"

// Daraja validates the password hash against East Africa Time regardless of
// the caller's locale.
var nairobi = time.FixedZone("EAT", 3*60*60)

// Payer numbers are country-code prefixed with no leading plus: 254 and nine
// digits.
var phonePattern = regexp.MustCompile(`^254[0-9]{9}$`)

// Config carries merchant credentials and endpoints for the Daraja API.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
}

// PushRequest is the STK push payload. Field names follow the wire format.
type PushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// ValidPhone reports whether phone matches the provider's required format.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// NewPushRequest assembles a signed STK push payload. Pure: performs no I/O
// and is deterministic for identical inputs including now.
func NewPushRequest(cfg Config, phone string, amount int64, reference, desc string, now time.Time) (PushRequest, error) {
	if amount <= 0 {
		return PushRequest{}, fmt.Errorf("%w: amount must be positive, got %d", domainErrors.ErrValidation, amount)
	}
	if !ValidPhone(phone) {
		return PushRequest{}, fmt.Errorf("%w: phone must match 254XXXXXXXXX", domainErrors.ErrValidation)
	}
	if cfg.ShortCode == "" || cfg.Passkey == "" || cfg.CallbackURL == "" {
		return PushRequest{}, fmt.Errorf("%w: incomplete merchant configuration", domainErrors.ErrValidation)
	}

	ts := Timestamp(now)
	return PushRequest{
		BusinessShortCode: cfg.ShortCode,
		Password:          Password(cfg.ShortCode, cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   TransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       cfg.CallbackURL,
		AccountReference:  reference,
		TransactionDesc:   desc,
	}, nil
}

// Timestamp renders now in the compact YYYYMMDDHHMMSS format Daraja expects,
// in East Africa Time.
func Timestamp(now time.Time) string {
	return now.In(nairobi).Format("20060102150405")
}

// Password is the reversible base64 encoding of shortcode, passkey and
// timestamp concatenated as raw bytes.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}
