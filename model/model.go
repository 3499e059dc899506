package model

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"
)

// TimeLayout is the layout of SurveyResponse.Timestamp.
const TimeLayout = "2006-01-02 15:04:05"

type Question struct {
	Text    string   `json:"question" yaml:"question"`
	Options []string `json:"options" yaml:"options"`
}

// HasOption reports whether opt is one of the question's valid options.
func (q Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

type Category struct {
	Name      string     `json:"category" yaml:"category"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// Question looks up a question by its text.
func (c Category) Question(text string) (Question, bool) {
	for _, q := range c.Questions {
		if q.Text == text {
			return q, true
		}
	}
	return Question{}, false
}

type SurveyResponse struct {
	ID              int64   `json:"id"`
	Category        string  `json:"category"`
	MerchantName    string  `json:"merchant_name"`
	Timestamp       string  `json:"timestamp"`
	Latitude        string  `json:"latitude,omitempty"`
	Longitude       string  `json:"longitude,omitempty"`
	LocationAddress string  `json:"location_address,omitempty"`
	Answers         Answers `json:"answers"`
}

// HasLocation reports whether coordinates were captured for the response.
func (r SurveyResponse) HasLocation() bool {
	return r.Latitude != "" && r.Longitude != ""
}

type Answer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Answers is an ordered question → answer mapping.
// It is encoded as a JSON object whose keys keep insertion order. Nil
// answers (not loaded) encode as null, empty ones as {}.
type Answers []Answer

func (a Answers) Get(question string) (string, bool) {
	for _, ans := range a {
		if ans.Question == question {
			return ans.Answer, true
		}
	}
	return "", false
}

// Set replaces the answer to question in place, or appends it.
func (a *Answers) Set(question, answer string) {
	for i := range *a {
		if (*a)[i].Question == question {
			(*a)[i].Answer = answer
			return
		}
	}
	*a = append(*a, Answer{question, answer})
}

func (a Answers) Questions() []string {
	qs := make([]string, len(a))
	for i, ans := range a {
		qs[i] = ans.Question
	}
	return qs
}

func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	return append(Answers(nil), a...)
}

func (a Answers) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ans := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(ans.Question)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(ans.Answer)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Answers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*a = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("answers: expected object, got %v", tok)
	}

	out := Answers{}
	for dec.More() {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		question, ok := tok.(string)
		if !ok {
			return fmt.Errorf("answers: expected key, got %v", tok)
		}
		var answer string
		if err = dec.Decode(&answer); err != nil {
			return fmt.Errorf("answers: %q: %w", question, err)
		}
		out.Set(question, answer)
	}
	*a = out
	return nil
}

// NormalizeText trims s and puts it in Unicode NFC, so that equal names
// typed on different keyboards compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
