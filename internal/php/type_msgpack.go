package php

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

type atomicRecord struct {
	Kind    string `msgpack:"k"`
	Value   string `msgpack:"v,omitempty"`
	Class   string `msgpack:"c,omitempty"`
	Numeric bool   `msgpack:"n,omitempty"`
	Elem    *Union `msgpack:"e,omitempty"`
}

type unionRecord struct {
	Types                []atomicRecord `msgpack:"t"`
	IgnoreNullableIssues bool           `msgpack:"i,omitempty"`
}

var _ msgpack.CustomEncoder = (*Union)(nil)
var _ msgpack.CustomDecoder = (*Union)(nil)

// EncodeMsgpack stores the union as tagged records so it can live in the index
func (u *Union) EncodeMsgpack(enc *msgpack.Encoder) error {
	rec := unionRecord{IgnoreNullableIssues: u.IgnoreNullableIssues}
	for _, t := range u.types {
		rec.Types = append(rec.Types, toRecord(t))
	}
	return enc.Encode(rec)
}

// DecodeMsgpack restores a union written by EncodeMsgpack
func (u *Union) DecodeMsgpack(dec *msgpack.Decoder) error {
	var rec unionRecord
	if err := dec.Decode(&rec); err != nil {
		return err
	}
	u.types = nil
	u.IgnoreNullableIssues = rec.IgnoreNullableIssues
	for _, r := range rec.Types {
		atomic, err := fromRecord(r)
		if err != nil {
			return err
		}
		u.add(atomic)
	}
	if len(u.types) == 0 {
		u.types = append(u.types, NewMixedType())
	}
	return nil
}

func toRecord(t Atomic) atomicRecord {
	switch a := t.(type) {
	case *NamedObject:
		return atomicRecord{Kind: "object", Value: a.ClassName}
	case *ClassStringType:
		return atomicRecord{Kind: "class-string", Value: a.As}
	case *LiteralClassString:
		return atomicRecord{Kind: "literal-class-string", Value: a.Value}
	case *StringType:
		return atomicRecord{Kind: "string", Numeric: a.Numeric}
	case *BoolType:
		return atomicRecord{Kind: "bool", Value: a.Name()}
	case *ArrayType:
		return atomicRecord{Kind: "array", Elem: a.Elem}
	case *TemplateParam:
		return atomicRecord{Kind: "template", Value: a.ParamName, Class: a.DefiningClass}
	case *SpecialType:
		return atomicRecord{Kind: "special", Value: a.Name()}
	case *ObjectType:
		return atomicRecord{Kind: "object-any"}
	default:
		return atomicRecord{Kind: t.Name()}
	}
}

func fromRecord(r atomicRecord) (Atomic, error) {
	switch r.Kind {
	case "object":
		return NewNamedObject(r.Value), nil
	case "class-string":
		return NewClassStringType(r.Value), nil
	case "literal-class-string":
		return NewLiteralClassString(r.Value), nil
	case "string":
		return NewStringType(r.Numeric), nil
	case "bool":
		return NewBoolType(r.Value), nil
	case "array":
		return NewArrayType(r.Elem), nil
	case "template":
		return NewTemplateParam(r.Class, r.Value), nil
	case "special":
		return NewSpecialType(r.Value), nil
	case "int":
		return NewIntType(), nil
	case "float":
		return NewFloatType(), nil
	case "object-any":
		return NewObjectType(), nil
	case "callable":
		return NewCallableType(), nil
	case "iterable":
		return NewIterableType(), nil
	case "void":
		return NewVoidType(), nil
	case "never":
		return NewNeverType(), nil
	case "null":
		return NewNullType(), nil
	case "mixed":
		return NewMixedType(), nil
	}
	return nil, fmt.Errorf("unknown atomic kind %q", r.Kind)
}
