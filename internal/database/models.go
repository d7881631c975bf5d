package database

// GORM row types for report history. A report is normalized across child
// tables keyed by ReportID; reconstruction happens in GetReport.

type ReportRow struct {
	ID        uint   `gorm:"primaryKey"`
	ReportID  string `gorm:"uniqueIndex;size:16"`
	Topic     string
	CreatedAt string
	Tier      string
	TLP       string
	BLUF      string

	ActorName        string
	ActorAliases     string // JSON array
	ActorAttribution string
	ActorFirstSeen   string
	ActorLastActive  string
	ActorTooling     string // JSON array
	ActorNotes       string
}

func (ReportRow) TableName() string { return "reports" }

type SectionRow struct {
	ID        uint   `gorm:"primaryKey"`
	ReportID  string `gorm:"index;size:16"`
	Position  int
	SectionID string
	Title     string
	Content   string
	Citations string // JSON array
}

func (SectionRow) TableName() string { return "report_sections" }

type IOCRow struct {
	ID       uint   `gorm:"primaryKey"`
	ReportID string `gorm:"index;size:16"`
	Type     string
	Value    string
	Context  string
	Sources  string // JSON array
}

func (IOCRow) TableName() string { return "report_iocs" }

type TechniqueRow struct {
	ID          uint   `gorm:"primaryKey"`
	ReportID    string `gorm:"index;size:16"`
	Position    int
	TechniqueID string
	Name        string
	Tactic      string
	Description string
}

func (TechniqueRow) TableName() string { return "report_techniques" }

type EvidenceRow struct {
	ID          uint   `gorm:"primaryKey"`
	ReportID    string `gorm:"index;size:16"`
	TechniqueID string
	Quote       string
	Source      string
}

func (EvidenceRow) TableName() string { return "report_evidence" }

type SourceRow struct {
	ID         uint   `gorm:"primaryKey"`
	ReportID   string `gorm:"index;size:16"`
	Position   int
	Title      string
	URL        string
	AccessedAt string
	Snippet    string
}

func (SourceRow) TableName() string { return "report_sources" }

type CitationRow struct {
	ID       uint   `gorm:"primaryKey"`
	ReportID string `gorm:"index;size:16"`
	Position int
	Kind     string // "footnote" or "bibliography"
	Text     string
}

func (CitationRow) TableName() string { return "report_citations" }

type AssessmentRow struct {
	ID         uint   `gorm:"primaryKey"`
	ReportID   string `gorm:"index;size:16"`
	Position   int
	Finding    string
	Confidence string
	Rationale  string
}

func (AssessmentRow) TableName() string { return "report_assessments" }
