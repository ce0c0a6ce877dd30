package entity

import (
	"encoding/json"
	"time"
)

// Challenge is a row of the `captcha_challenges` table: the answer a client
// must repeat, bound to the browser fingerprint it presented at issuance.
type Challenge struct {
	ID          int64           `db:"id"`
	Token       string          `db:"token"`
	Code        string          `db:"code"`
	Fingerprint json.RawMessage `db:"fingerprint"`
	CreatedAt   time.Time       `db:"created_at"`
}
