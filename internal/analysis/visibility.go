package analysis

import (
	"fmt"
	"strings"

	"github.com/shopware/php-callcheck/internal/php"
)

// IsMethodVisible reports whether code inside self may call the method. Private methods are
// visible in the class they appear in, protected ones along the inheritance chain in either
// direction.
func IsMethodVisible(codebase Codebase, methodID, self string) bool {
	appearingID := codebase.AppearingMethodID(methodID)
	method := codebase.GetMethod(methodID)
	if appearingID == "" || method == nil {
		return false
	}

	appearingClass, _ := php.SplitMethodID(appearingID)
	if self != "" && strings.EqualFold(appearingClass, self) {
		return true
	}

	switch method.Visibility {
	case php.Private:
		return false
	case php.Protected:
		if self == "" {
			return false
		}
		return codebase.ClassExtends(appearingClass, self) || codebase.ClassExtends(self, appearingClass)
	default:
		return true
	}
}

// CheckMethodVisibility reports InaccessibleMethod when the method is not visible from the context.
// It returns false when the issue was accepted and the call must not be analyzed further.
func CheckMethodVisibility(codebase Codebase, collector *Collector, methodID string, ctx *Context, loc CodeLocation) bool {
	if IsMethodVisible(codebase, methodID, ctx.Self) {
		return true
	}

	method := codebase.GetMethod(methodID)
	visibility, casedID := "private", methodID
	if method != nil {
		visibility, casedID = method.Visibility.String(), method.CasedID()
	}

	from := ctx.Self
	if from == "" {
		from = "global scope"
	}

	return !collector.Accepts(NewIssue(ctx, InaccessibleMethod, loc, casedID,
		fmt.Sprintf("Cannot access %s method %s from %s", visibility, casedID, from),
	), ctx.Suppressed)
}

// NewIssue creates an issue carrying the include chain of the context
func NewIssue(ctx *Context, t IssueType, loc CodeLocation, subject, message string) Issue {
	issue := Issue{
		Type:     t,
		Message:  message,
		Location: loc,
		Subject:  subject,
	}
	if ctx != nil && len(ctx.IncludeLocations) > 0 {
		issue.Provenance = append([]CodeLocation(nil), ctx.IncludeLocations...)
	}
	if ctx != nil && ctx.Origin != "" && ctx.Origin != loc.File {
		issue.Origin = ctx.Origin
	}
	return issue
}
