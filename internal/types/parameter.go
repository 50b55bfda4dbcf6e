package types

import "strings"

// ParameterKind classifies a method parameter
type ParameterKind uint8

const (
	ParamRequired ParameterKind = iota + 1
	ParamOptional
	ParamRest
	ParamKeyword
	ParamOptionalKeyword
	ParamKeywordRest
	ParamBlock
	ParamForward
)

// Parameter is one entry of a method signature
type Parameter struct {
	Kind ParameterKind
	Name string
}

// String renders the parameter the way it is written in a signature
func (p Parameter) String() string {
	switch p.Kind {
	case ParamOptional:
		return p.Name + " = <default>"
	case ParamRest:
		return "*" + p.Name
	case ParamKeyword:
		return p.Name + ":"
	case ParamOptionalKeyword:
		return p.Name + ": <default>"
	case ParamKeywordRest:
		return "**" + p.Name
	case ParamBlock:
		return "&" + p.Name
	case ParamForward:
		return "..."
	default:
		return p.Name
	}
}

// FormatSignature renders a parameter list as "(a, b = <default>, *rest)"
func FormatSignature(params []Parameter) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
