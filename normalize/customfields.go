package normalize

import (
	"strconv"
)

const legacySlots = 5

const (
	FieldSourceList   = "list"
	FieldSourceLegacy = "legacy"
)

type CustomField struct {
	Name   string      `json:"name"`
	Value  interface{} `json:"value"`
	Source string      `json:"source"`
}

// CustomFields collects every populated extension field. The list form
// ({name|fieldName, value|fieldValue}) comes first, followed by the legacy
// slots extraStr1..5, extraInt1..5, extraText and referenceNumber.
// An integer 0 is a populated value; nil and blank strings are not.
func CustomFields(rec Record) []CustomField {
	fields := make([]CustomField, 0)

	var nodes []Record
	for _, key := range []string{"extraFields", "customFields", "extra_fields"} {
		nodes = append(nodes, Nodes(rec[key])...)
	}

	for _, node := range nodes {
		value := firstPresent(node, "value", "fieldValue")
		if !isPresent(value) {
			continue
		}

		fields = append(fields, CustomField{
			Name:   Str(firstPresent(node, "name", "fieldName")),
			Value:  value,
			Source: FieldSourceList,
		})
	}

	for _, name := range legacyFieldNames() {
		value, ok := rec[name]
		if !ok || !isPresent(value) {
			continue
		}

		fields = append(fields, CustomField{Name: name, Value: value, Source: FieldSourceLegacy})
	}

	return fields
}

func HasCustomFields(rec Record) bool {
	return len(CustomFields(rec)) > 0
}

func legacyFieldNames() []string {
	names := make([]string, 0, 2*legacySlots+2)
	for i := 1; i <= legacySlots; i++ {
		names = append(names, "extraStr"+strconv.Itoa(i))
	}
	for i := 1; i <= legacySlots; i++ {
		names = append(names, "extraInt"+strconv.Itoa(i))
	}
	return append(names, "extraText", "referenceNumber")
}

// firstPresent differs from First in that it never descends into paths.
func firstPresent(rec Record, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := rec[key]; ok && isPresent(v) {
			return v
		}
	}
	return nil
}
