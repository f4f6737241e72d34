package entity

type FindingSeverity string

const (
	SeverityWarning FindingSeverity = "warning"
	SeverityError   FindingSeverity = "error"
)

// Finding is one static-analysis remark about generated plugin code.
type Finding struct {
	Rule     string          `json:"rule" bson:"rule"`
	Severity FindingSeverity `json:"severity" bson:"severity"`
	Message  string          `json:"message" bson:"message"`
	Line     int             `json:"line,omitempty" bson:"line,omitempty"`
}
