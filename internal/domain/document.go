package domain

import "time"

type DocumentType string

const (
	DocumentRental DocumentType = "rental"
	DocumentID     DocumentType = "id"
	DocumentSSN    DocumentType = "ssn"
	DocumentIncome DocumentType = "income"
)

type Document struct {
	ID          string       `json:"id"`
	Type        DocumentType `json:"type"`
	URL         string       `json:"url"`
	UploadedAt  time.Time    `json:"uploadedAt"`
	Description string       `json:"description,omitempty"`
}

// DocumentPolicy says what an upload does to existing documents of the same type.
type DocumentPolicy int

const (
	ReplaceByType DocumentPolicy = iota
	AppendOnly
)

var documentPolicies = map[DocumentType]DocumentPolicy{
	DocumentRental: ReplaceByType,
	DocumentID:     ReplaceByType,
	DocumentSSN:    ReplaceByType,
	DocumentIncome: AppendOnly,
}

// PolicyFor returns the upload policy of t; ok is false for unknown types.
func PolicyFor(t DocumentType) (DocumentPolicy, bool) {
	p, ok := documentPolicies[t]
	return p, ok
}

// ApplyUpload returns docs with d added according to the policy of d.Type,
// plus the documents it displaced.
func ApplyUpload(docs []Document, d Document) (out, replaced []Document) {
	policy, _ := PolicyFor(d.Type)
	out = make([]Document, 0, len(docs)+1)
	for _, cur := range docs {
		if policy == ReplaceByType && cur.Type == d.Type {
			replaced = append(replaced, cur)
			continue
		}
		out = append(out, cur)
	}
	return append(out, d), replaced
}
