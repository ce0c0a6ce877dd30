package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/ovaphlow/pitchfork/service-noc/internal/errorz"
	"github.com/ovaphlow/pitchfork/service-noc/pkg/httpx"
)

// wire is the outer shape of an encrypted request body.
type wire struct {
	Data *string `json:"data"`
}

// DecodeRequest decodes r's body into dst. A body of the form
// {"data": "<envelope>"} is decrypted first; any other JSON object is taken
// as plaintext fields. A nil gate rejects encrypted bodies.
func DecodeRequest(g *Gate, r *http.Request, dst any) error {
	body, err := httpx.ReadBody(r)
	if err != nil {
		return err
	}
	var outer wire
	if err := json.Unmarshal(body, &outer); err != nil {
		return errorz.BadRequest("invalid payload")
	}
	if outer.Data != nil {
		return g.Unwrap(*outer.Data, dst)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errorz.BadRequest("invalid payload")
	}
	return nil
}
