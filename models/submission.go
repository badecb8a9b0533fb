package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// 組合欄位的子欄位名稱
var compositeParts = []string{"first", "middle", "last", "address1", "address2", "city", "state", "postal", "country"}

// FieldTypeFileUpload 檔案上傳欄位類型
const FieldTypeFileUpload = "file-upload"

// SubmittedField 已送出的單一欄位；組合欄位的子值放在 Parts
type SubmittedField struct {
	ID     string            `json:"id"`
	Type   string            `json:"type,omitempty"`
	Format string            `json:"format,omitempty"`
	Value  string            `json:"value"`
	Parts  map[string]string `json:"parts,omitempty"`
}

// Part 取得子欄位值，不存在時 ok 為 false
func (f SubmittedField) Part(name string) (string, bool) {
	if f.Parts == nil {
		return "", false
	}
	v, ok := f.Parts[name]
	return v, ok
}

// UnmarshalJSON 接受表單系統的欄位格式，子欄位與 value 同層
func (f *SubmittedField) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	f.ID = rawString(raw["id"])
	f.Type = rawString(raw["type"])
	f.Format = rawString(raw["format"])
	f.Value = rawString(raw["value"])

	if partsRaw, ok := raw["parts"]; ok {
		var parts map[string]string
		if err := json.Unmarshal(partsRaw, &parts); err != nil {
			return fmt.Errorf("invalid parts for field %s: %w", f.ID, err)
		}
		f.Parts = parts
	}

	for _, name := range compositeParts {
		if v, ok := raw[name]; ok {
			if f.Parts == nil {
				f.Parts = map[string]string{}
			}
			f.Parts[name] = rawString(v)
		}
	}
	return nil
}

// rawString 將 JSON 字串、數字或布林值轉為字串
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// FieldValues 以欄位 ID 為 key 的送出值
type FieldValues map[string]SubmittedField

// PostedFieldValues 將原始 POST 值（字串、子欄位 map 或含 value 的 map）整理成 FieldValues
func PostedFieldValues(posted map[string]any) FieldValues {
	values := make(FieldValues, len(posted))
	for id, raw := range posted {
		field := SubmittedField{ID: id}
		switch v := raw.(type) {
		case map[string]any:
			for key, sub := range v {
				s := anyString(sub)
				switch key {
				case "value":
					field.Value = s
				case "type":
					field.Type = s
				default:
					if field.Parts == nil {
						field.Parts = map[string]string{}
					}
					field.Parts[key] = s
				}
			}
		case []any:
			// 多選欄位以換行串接，與表單系統儲存格式一致
			for i, item := range v {
				if i > 0 {
					field.Value += "\n"
				}
				field.Value += anyString(item)
			}
		default:
			field.Value = anyString(v)
		}
		values[id] = field
	}
	return values
}

func anyString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case json.Number:
		return s.String()
	default:
		return fmt.Sprint(s)
	}
}

// FormErrors 表單錯誤：form ID → 欄位 ID（或 "header"）→ 訊息
type FormErrors map[int]map[string]string

// FormErrorHeader 表單層級錯誤的 key
const FormErrorHeader = "header"

// Set 設定某表單欄位的錯誤
func (e FormErrors) Set(formID int, fieldID, message string) {
	if e[formID] == nil {
		e[formID] = map[string]string{}
	}
	e[formID][fieldID] = message
}

// Has 表單是否有任何錯誤
func (e FormErrors) Has(formID int) bool {
	return len(e[formID]) > 0
}

// SortedKeys 回傳排序後的 map key，讓對應順序穩定
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
