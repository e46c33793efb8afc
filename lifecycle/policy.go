// Package lifecycle runs scrubs from CloudFormation custom resource events.
package lifecycle

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/cfn"
)

// Action names the stack operation a resource is configured to scrub on.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionNone is an absent Action property.
	ActionNone Action = ""
)

// ShouldScrub reports whether a stack operation of kind requested runs a scrub
// for a resource configured with configured. Create and update scrub only when
// configured for them; delete scrubs when configured for delete or when no
// action is configured.
func ShouldScrub(requested, configured Action) bool {
	switch requested {
	case ActionCreate, ActionUpdate:
		return configured == requested
	case ActionDelete:
		return configured == ActionDelete || configured == ActionNone
	default:
		return false
	}
}

// Known reports whether a is one of the recognised actions or absent.
func (a Action) Known() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionNone:
		return true
	default:
		return false
	}
}

// ActionFor maps a CloudFormation request type to an Action.
func ActionFor(rt cfn.RequestType) Action {
	switch rt {
	case cfn.RequestCreate:
		return ActionCreate
	case cfn.RequestUpdate:
		return ActionUpdate
	case cfn.RequestDelete:
		return ActionDelete
	default:
		return ActionNone
	}
}

// Properties are the custom resource properties a scrub reads.
type Properties struct {
	BucketName   string
	ObjectPrefix string
	Action       Action

	// FailOnPartial, when set, overrides the handler default
	FailOnPartial *bool
}

// ParseProperties reads Properties from a resource property map.
// CloudFormation passes every scalar as a string; other scalars are formatted.
// Action is kept verbatim and matched exactly, so an unrecognised value never
// scrubs. The only error is an unparsable FailOnPartial, which is left nil.
func ParseProperties(props map[string]interface{}) (Properties, error) {
	var p Properties

	p.BucketName = strings.TrimSpace(stringProperty(props, "BucketName"))
	p.ObjectPrefix = stringProperty(props, "ObjectPrefix")
	p.Action = Action(stringProperty(props, "Action"))

	if raw := stringProperty(props, "FailOnPartial"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("lifecycle: FailOnPartial %q: %w", raw, err)
		}
		p.FailOnPartial = &v
	}

	return p, nil
}

func stringProperty(props map[string]interface{}, name string) string {
	v, ok := props[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
