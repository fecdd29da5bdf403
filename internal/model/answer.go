package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

var errInvalidAnswerValue = errors.New("answer must be a string or an array of strings")

// AnswerValue is a submitted answer: a single string for multiple_choice,
// an ordered list of blocks for fill_blank_blocks.
type AnswerValue struct {
	Text   string   `bson:"text,omitempty"`
	Blocks []string `bson:"blocks,omitempty"`
	IsList bool     `bson:"isList"`
}

// TextAnswer builds a single-value answer
func TextAnswer(s string) AnswerValue {
	return AnswerValue{Text: s}
}

// BlockAnswer builds an ordered list answer
func BlockAnswer(blocks ...string) AnswerValue {
	if blocks == nil {
		blocks = []string{}
	}
	return AnswerValue{Blocks: blocks, IsList: true}
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.IsList {
		if a.Blocks == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Blocks)
	}
	return json.Marshal(a.Text)
}

func (a *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*a = AnswerValue{}
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	case data[0] == '[':
		var blocks []string
		if err := json.Unmarshal(data, &blocks); err != nil {
			return errInvalidAnswerValue
		}
		*a = BlockAnswer(blocks...)
		return nil
	}
	return errInvalidAnswerValue
}

// AnswerRecord is the stored answer for one question of an attempt
type AnswerRecord struct {
	QuestionID string      `json:"questionId" bson:"questionId"`
	Answer     AnswerValue `json:"answer" bson:"answer"`
	Correct    *bool       `json:"-" bson:"correct,omitempty"` // Only set when the attempt is scored
	AnsweredAt time.Time   `json:"answeredAt" bson:"answeredAt"`
}

// SubmittedAnswer is one entry of a submit request
type SubmittedAnswer struct {
	QuestionID string      `json:"questionId"`
	Answer     AnswerValue `json:"answer"`
}
