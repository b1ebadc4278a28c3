package models

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// StringList holds product tags. Older documents stored tags as one comma
// separated string, so both shapes decode.
type StringList []string

func (s *StringList) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*s = StringList{}
		return nil
	case bsontype.Array:
		var values []string
		if err := bson.UnmarshalValue(t, data, &values); err != nil {
			return err
		}
		*s = StringList(values).Normalize()
		return nil
	case bsontype.String:
		var value string
		if err := bson.UnmarshalValue(t, data, &value); err != nil {
			return err
		}
		*s = StringList(strings.Split(value, ",")).Normalize()
		return nil
	default:
		return fmt.Errorf("cannot decode %s into StringList", t)
	}
}

func (s StringList) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue([]string(s.Normalize()))
}

// Normalize lowercases, trims and de-duplicates, keeping first-seen order.
func (s StringList) Normalize() StringList {
	out := make(StringList, 0, len(s))
	seen := make(map[string]struct{}, len(s))
	for _, v := range s {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
