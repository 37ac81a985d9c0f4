package logging

import (
	"fmt"
	"regexp"

	"go.uber.org/zap/zapcore"
)

// botID:secret, optionally prefixed with "bot" as it appears in API URLs.
var telegramTokenRegex = regexp.MustCompile(`\b(bot)?\d{6,}:[A-Za-z0-9_-]{30,}`)

// MaskTokens replaces Telegram bot tokens in text with a fixed mask.
func MaskTokens(text string) string {
	return telegramTokenRegex.ReplaceAllStringFunc(text, func(m string) string {
		if len(m) > 3 && m[:3] == "bot" {
			return "bot***:***masked-token***"
		}
		return "***:***masked-token***"
	})
}

type maskingCore struct {
	zapcore.Core
}

// NewMaskingCore wraps core so messages, string fields and errors are masked.
func NewMaskingCore(core zapcore.Core) zapcore.Core {
	return &maskingCore{Core: core}
}

func (c *maskingCore) With(fields []zapcore.Field) zapcore.Core {
	return &maskingCore{Core: c.Core.With(maskFields(fields))}
}

func (c *maskingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *maskingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = MaskTokens(ent.Message)
	return c.Core.Write(ent, maskFields(fields))
}

func maskFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = MaskTokens(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: MaskTokens(err.Error())}
			}
		case zapcore.StringerType:
			if s, ok := f.Interface.(fmt.Stringer); ok && s != nil {
				f = zapcore.Field{Key: f.Key, Type: zapcore.StringType, String: MaskTokens(s.String())}
			}
		}
		out[i] = f
	}
	return out
}
