package filler

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/pdftemplatefill/internal/apperrors"
)

// maxFieldDepth bounds recursion through the form field tree.
const maxFieldDepth = 32

// formField is a terminal or non-terminal field of the document's form,
// keyed by its fully qualified name.
type formField struct {
	name string
	typ  string // inherited /FT
	dict types.Dict
}

// formFields returns the form dictionary and its fields by qualified name.
// A document without a form yields a nil dictionary and no error.
func formFields(ctx *model.Context) (types.Dict, map[string]formField, error) {
	root, err := ctx.Catalog()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	obj, found := root["AcroForm"]
	if !found {
		return nil, nil, nil
	}
	acro, err := ctx.DereferenceDict(obj)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read AcroForm: %w", err)
	}
	if acro == nil {
		return nil, nil, nil
	}
	out := make(map[string]formField)
	fieldsObj, found := acro["Fields"]
	if !found {
		return acro, out, nil
	}
	fields, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read AcroForm fields: %w", err)
	}
	if err := walkFields(ctx, fields, "", "", 0, out); err != nil {
		return nil, nil, err
	}
	return acro, out, nil
}

func walkFields(ctx *model.Context, kids types.Array, parent, parentType string, depth int, out map[string]formField) error {
	if depth > maxFieldDepth {
		return fmt.Errorf("form field tree deeper than %d", maxFieldDepth)
	}
	for _, o := range kids {
		d, err := ctx.DereferenceDict(o)
		if err != nil {
			return fmt.Errorf("failed to read form field: %w", err)
		}
		if d == nil {
			continue
		}
		partial := ""
		if t, ok := d["T"]; ok {
			if partial, err = decodeText(ctx, t); err != nil {
				return fmt.Errorf("failed to decode field name: %w", err)
			}
		}
		name := parent
		if partial != "" {
			if name != "" {
				name += "."
			}
			name += partial
		}
		typ := parentType
		if ft, ok := d["FT"].(types.Name); ok {
			typ = string(ft)
		}
		if k, ok := d["Kids"]; ok {
			arr, err := ctx.DereferenceArray(k)
			if err != nil {
				return fmt.Errorf("failed to read kids of %q: %w", name, err)
			}
			if err := walkFields(ctx, arr, name, typ, depth+1, out); err != nil {
				return err
			}
		}
		// Kids without /T are widget annotations of this field.
		if partial == "" {
			continue
		}
		if _, dup := out[name]; !dup {
			out[name] = formField{name: name, typ: typ, dict: d}
		}
	}
	return nil
}

func decodeText(ctx *model.Context, o types.Object) (string, error) {
	o, err := ctx.Dereference(o)
	if err != nil {
		return "", err
	}
	switch v := o.(type) {
	case types.StringLiteral:
		return types.StringLiteralToString(v)
	case types.HexLiteral:
		return types.HexLiteralToString(v)
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("unexpected text object %T", o)
}

// applyForms sets the value of each targeted text or choice field. Fields
// absent from the form, or of another type, are returned as warnings and
// left untouched.
func applyForms(ctx *model.Context, ops []formOp) ([]error, error) {
	acro, fields, err := formFields(ctx)
	if err != nil {
		return nil, err
	}
	var warnings []error
	applied := 0
	for _, op := range ops {
		ff, ok := fields[op.acroformName]
		if !ok {
			warnings = append(warnings, apperrors.New(apperrors.KindMissingFormField,
				"field %q: form field %q does not exist in the template", op.field, op.acroformName))
			continue
		}
		if ff.typ != "Tx" && ff.typ != "Ch" {
			warnings = append(warnings, apperrors.New(apperrors.KindValidation,
				"field %q: form field %q has type %q, only text and choice fields accept values", op.field, op.acroformName, ff.typ))
			continue
		}
		ff.dict["V"] = types.NewHexLiteral([]byte(types.EncodeUTF16String(op.text)))
		dropAppearances(ctx, ff.dict)
		applied++
	}
	if applied > 0 {
		acro["NeedAppearances"] = types.Boolean(true)
	}
	return warnings, nil
}

// dropAppearances removes stale appearance streams from a field and its
// widgets so viewers regenerate them from /V.
func dropAppearances(ctx *model.Context, d types.Dict) {
	delete(d, "AP")
	k, ok := d["Kids"]
	if !ok {
		return
	}
	kids, err := ctx.DereferenceArray(k)
	if err != nil {
		return
	}
	for _, o := range kids {
		kd, err := ctx.DereferenceDict(o)
		if err != nil || kd == nil {
			continue
		}
		if _, isField := kd["T"]; !isField {
			delete(kd, "AP")
		}
	}
}
