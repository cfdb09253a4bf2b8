package data

const (
	// MaxLangLength bounds the language tag column, wide enough for
	// tags like zh-Hans.
	MaxLangLength = 8
	// MaxCodeLength bounds the message code column.
	MaxCodeLength = 255
)

// Locale is a single translated UI string addressed by (code, lang).
type Locale struct {
	BaseModel

	Lang    string `gorm:"type:varchar(8);not null;uniqueIndex:ux_locales_code_lang,priority:2;index:ix_locales_lang"`
	Code    string `gorm:"type:varchar(255);not null;uniqueIndex:ux_locales_code_lang,priority:1;index:ix_locales_code"`
	Message string `gorm:"type:text;not null"`
}

func (l *Locale) TableName() string {
	return "locales"
}

// Validate checks the column bounds before any write reaches the database.
func (l *Locale) Validate() error {
	if l.Lang == "" {
		return &ValidationError{Field: "lang", Reason: "is required"}
	}
	if len(l.Lang) > MaxLangLength {
		return &ValidationError{Field: "lang", Reason: "exceeds 8 characters"}
	}
	if l.Code == "" {
		return &ValidationError{Field: "code", Reason: "is required"}
	}
	if len(l.Code) > MaxCodeLength {
		return &ValidationError{Field: "code", Reason: "exceeds 255 characters"}
	}
	if l.Message == "" {
		return &ValidationError{Field: "message", Reason: "is required"}
	}
	return nil
}
