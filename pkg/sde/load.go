package sde

import (
	"encoding/json"
	"fmt"
	"os"
)

// typeRow mirrors the invTypes export schema.
type typeRow struct {
	TypeID    int64  `json:"typeID"`
	TypeName  string `json:"typeName"`
	Published int    `json:"published"`
}

// LoadTypeTable reads an invTypes JSON export into a TypeTable. The export
// encodes published as 0/1, the way the upstream SQL dump does.
func LoadTypeTable(path string) (*TypeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read type export: %w", err)
	}

	var raw []typeRow
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse type export: %w", err)
	}

	rows := make([]TypeInfo, len(raw))
	for i, r := range raw {
		rows[i] = TypeInfo{
			TypeID:    r.TypeID,
			Name:      r.TypeName,
			Published: r.Published != 0,
		}
	}
	return NewTypeTable(rows), nil
}
