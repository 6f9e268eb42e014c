// Package validate evaluates declarative rule sets against form input.
//
// RULE SETS:
// A RuleSet is an ordered list of fields, each with an ordered list of
// rules. Fields are checked in the order they are declared, and every
// failing rule of a field adds one message, so a short title that is also
// already taken reports both problems at once.
//
//	rules := validate.RuleSet{
//		validate.Field("title", validate.Required(), validate.String(), validate.Min(2)),
//		validate.Field("body", validate.Required(), validate.Max(1000)),
//	}
//
// EMPTY VALUES:
// An empty value either fails Required (and nothing else is checked for
// that field) or, when the field is optional, skips its remaining rules.
// "nullable|min:5" therefore accepts "" but rejects "abc".
//
// MESSAGES:
// Defaults follow the familiar "The name must be at least 3 characters."
// wording. Override one with Messages keyed "field.rule", for example
// "title.unique".
package validate

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
)

// Input is the data a RuleSet is evaluated against. Values holds text
// fields, Files holds uploads; a field may appear in either.
type Input struct {
	Values map[string]string
	Files  map[string]*model.Upload
}

// Messages overrides default messages, keyed "field.rule".
type Messages map[string]string

// UniqueChecker answers whether value is already in use by another record.
type UniqueChecker interface {
	Taken(ctx context.Context, value string) (bool, error)
}

// UniqueFunc adapts a function to UniqueChecker.
type UniqueFunc func(ctx context.Context, value string) (bool, error)

func (f UniqueFunc) Taken(ctx context.Context, value string) (bool, error) {
	return f(ctx, value)
}

type ruleKind string

const (
	kindRequired  ruleKind = "required"
	kindNullable  ruleKind = "nullable"
	kindString    ruleKind = "string"
	kindEmail     ruleKind = "email"
	kindMin       ruleKind = "min"
	kindMax       ruleKind = "max"
	kindConfirmed ruleKind = "confirmed"
	kindUnique    ruleKind = "unique"
	kindImage     ruleKind = "image"
)

// Rule is one constraint. Build rules with the constructors below.
type Rule struct {
	kind   ruleKind
	n      int
	unique UniqueChecker
}

func Required() Rule  { return Rule{kind: kindRequired} }
func Nullable() Rule  { return Rule{kind: kindNullable} }
func String() Rule    { return Rule{kind: kindString} }
func Email() Rule     { return Rule{kind: kindEmail} }
func Confirmed() Rule { return Rule{kind: kindConfirmed} }
func Image() Rule     { return Rule{kind: kindImage} }

// Min is a lower bound: characters for text, kilobytes for uploads.
func Min(n int) Rule { return Rule{kind: kindMin, n: n} }

// Max is an upper bound: characters for text, kilobytes for uploads.
func Max(n int) Rule { return Rule{kind: kindMax, n: n} }

// MaxKB is Max spelled for upload fields.
func MaxKB(n int) Rule { return Max(n) }

// Unique fails when checker reports the value as taken. The checker
// decides the scope (which table, which record to ignore).
func Unique(checker UniqueChecker) Rule { return Rule{kind: kindUnique, unique: checker} }

// FieldRules binds a field name to its rules.
type FieldRules struct {
	Name  string
	Rules []Rule
}

func Field(name string, rules ...Rule) FieldRules {
	return FieldRules{Name: name, Rules: rules}
}

// RuleSet is evaluated in declaration order.
type RuleSet []FieldRules

// emailValidator is safe for concurrent use once built.
var emailValidator = validator.New()

// Validate checks in against rules. It returns nil when every field passes,
// an error matching apperror.ErrValidation that carries the per-field
// messages when some fail, or a plain wrapped error when a Unique lookup
// itself fails.
func Validate(ctx context.Context, rules RuleSet, in Input, messages Messages) error {
	errs := apperror.FieldErrors{}

	for _, field := range rules {
		if err := checkField(ctx, field, in, messages, errs); err != nil {
			return err
		}
	}
	return errs.Err()
}

func checkField(ctx context.Context, field FieldRules, in Input, messages Messages, errs apperror.FieldErrors) error {
	value := in.Values[field.Name]
	file := in.Files[field.Name]
	present := file != nil || value != ""

	if !present {
		for _, r := range field.Rules {
			if r.kind == kindRequired {
				errs.Add(field.Name, message(messages, field.Name, r, file))
				return nil
			}
		}
		return nil
	}

	for _, r := range field.Rules {
		ok, err := passes(ctx, r, field.Name, value, file, in)
		if err != nil {
			return err
		}
		if !ok {
			errs.Add(field.Name, message(messages, field.Name, r, file))
		}
	}
	return nil
}

func passes(ctx context.Context, r Rule, name, value string, file *model.Upload, in Input) (bool, error) {
	switch r.kind {
	case kindRequired, kindNullable:
		return true, nil
	case kindString:
		return file == nil, nil
	case kindEmail:
		return file == nil && emailValidator.Var(value, "email") == nil, nil
	case kindMin:
		if file != nil {
			return file.Size >= int64(r.n)*1024, nil
		}
		return utf8.RuneCountInString(value) >= r.n, nil
	case kindMax:
		if file != nil {
			return file.Size <= int64(r.n)*1024, nil
		}
		return utf8.RuneCountInString(value) <= r.n, nil
	case kindConfirmed:
		return value == in.Values[name+"_confirmation"], nil
	case kindUnique:
		taken, err := r.unique.Taken(ctx, value)
		if err != nil {
			return false, fmt.Errorf("validate: checking %s uniqueness: %w", name, err)
		}
		return !taken, nil
	case kindImage:
		if file == nil {
			return false, nil
		}
		_, ok, err := SniffImage(file)
		if err != nil {
			return false, fmt.Errorf("validate: reading %s: %w", name, err)
		}
		return ok, nil
	default:
		return false, fmt.Errorf("validate: unknown rule %q", r.kind)
	}
}

func message(messages Messages, field string, r Rule, file *model.Upload) string {
	if custom, ok := messages[field+"."+string(r.kind)]; ok {
		return custom
	}

	attr := strings.ReplaceAll(field, "_", " ")
	switch r.kind {
	case kindRequired:
		return fmt.Sprintf("The %s field is required.", attr)
	case kindString:
		return fmt.Sprintf("The %s must be a string.", attr)
	case kindEmail:
		return fmt.Sprintf("The %s must be a valid email address.", attr)
	case kindMin:
		if file != nil {
			return fmt.Sprintf("The %s must be at least %d kilobytes.", attr, r.n)
		}
		return fmt.Sprintf("The %s must be at least %d characters.", attr, r.n)
	case kindMax:
		if file != nil {
			return fmt.Sprintf("The %s may not be greater than %d kilobytes.", attr, r.n)
		}
		return fmt.Sprintf("The %s may not be greater than %d characters.", attr, r.n)
	case kindConfirmed:
		return fmt.Sprintf("The %s confirmation does not match.", attr)
	case kindUnique:
		return fmt.Sprintf("The %s has already been taken.", attr)
	case kindImage:
		return fmt.Sprintf("The %s must be an image.", attr)
	default:
		return fmt.Sprintf("The %s is invalid.", attr)
	}
}
