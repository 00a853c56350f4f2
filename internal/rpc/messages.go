package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/possync/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// Encode converts a message into a Struct through its JSON form. A nil
// message encodes as an empty Struct.
func Encode(msg any) (*structpb.Struct, error) {
	if msg == nil {
		return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return structpb.NewStruct(fields)
}

// Decode fills msg from s.
func Decode(s *structpb.Struct, msg any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("decode %T: %w", msg, err)
	}
	return nil
}

// TableRequest addresses records of one table. Which fields are used depends
// on the method.
type TableRequest struct {
	Table  string          `json:"table"`
	ID     string          `json:"id,omitempty"`
	Column string          `json:"column,omitempty"`
	Value  string          `json:"value,omitempty"`
	Record json.RawMessage `json:"record,omitempty"`
	Patch  map[string]any  `json:"patch,omitempty"`
}

type RecordResponse struct {
	Record json.RawMessage `json:"record"`
}

type RecordsResponse struct {
	Records []json.RawMessage `json:"records"`
}

type PingResponse struct {
	ServerTime string `json:"server_time"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type LoginResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type PresignImageUploadRequest struct {
	ProductID   string `json:"product_id"`
	ContentType string `json:"content_type,omitempty"`
}

type PresignImageDownloadRequest struct {
	Key string `json:"key"`
}

type PresignResponse struct {
	Key string `json:"key,omitempty"`
	URL string `json:"url"`
}

// RecordMessage encodes a record for TableRequest.Record or RecordResponse.
func RecordMessage(r models.Record) (json.RawMessage, error) {
	return models.Encode(r)
}

// RecordsMessage encodes a slice of records.
func RecordsMessage(recs []models.Record) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(recs))
	for _, r := range recs {
		data, err := models.Encode(r)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// DecodeRecords decodes the records of a RecordsResponse.
func DecodeRecords(t models.Table, raw []json.RawMessage) ([]models.Record, error) {
	out := make([]models.Record, 0, len(raw))
	for _, data := range raw {
		r, err := models.Decode(t, data)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
