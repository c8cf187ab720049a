package recordstore

import (
	"bytes"
	"encoding/json"
)

// Field identifies one column of the remote application form.
type Field struct {
	ID    int
	Title string
}

// Value is a single cell value. The service always speaks strings.
type Value struct {
	Value string `json:"value"`
}

// Answer is one field/value pair of a record.
type Answer struct {
	QueID    int     `json:"queId"`
	QueTitle string  `json:"queTitle"`
	Values   []Value `json:"values"`
}

// NewAnswer builds a single-valued answer for f.
func NewAnswer(f Field, value string) Answer {
	return Answer{QueID: f.ID, QueTitle: f.Title, Values: []Value{{Value: value}}}
}

// First returns the first value of the answer, or "" when it has none.
func (a Answer) First() string {
	if len(a.Values) == 0 {
		return ""
	}
	return a.Values[0].Value
}

// RecordID is the service's identifier of a record. It arrives as a JSON
// number or string depending on the endpoint.
type RecordID string

func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = RecordID(n.String())
	return nil
}

// Record is one stored application.
type Record struct {
	ID      RecordID `json:"applyId"`
	Answers []Answer `json:"answers"`
}

type answersRequest struct {
	Answers []Answer `json:"answers"`
}

type query struct {
	QueID     int    `json:"queId"`
	QueTitle  string `json:"queTitle"`
	SearchKey string `json:"searchKey"`
}

type filterRequest struct {
	PageSize int     `json:"pageSize"`
	PageNum  int     `json:"pageNum"`
	Queries  []query `json:"queries"`
}

// envelope wraps every response. A non-zero ErrCode is a failure even when
// the HTTP status is 200.
type envelope struct {
	ErrCode int             `json:"errCode"`
	ErrMsg  string          `json:"errMsg"`
	Result  json.RawMessage `json:"result"`
}

type filterResult struct {
	Result []Record `json:"result"`
}

type createResult struct {
	ID RecordID `json:"applyId"`
}
