package fmrest

// EmptyResponse decodes responses whose payload is an empty object.
type EmptyResponse struct {
	Empty *string `json:"empty,omitempty"`
}

// ProductInfoResponse is the response of /productInfo.
type ProductInfoResponse struct {
	ProductInfo struct {
		Name            string `json:"name"`
		BuildDate       string `json:"buildDate"`
		Version         string `json:"version"`
		DateFormat      string `json:"dateFormat"`
		TimeFormat      string `json:"timeFormat"`
		TimeStampFormat string `json:"timeStampFormat"`
	} `json:"productInfo"`
}

// DatabaseList is the response of /databases.
type DatabaseList struct {
	Databases []struct {
		Name string `json:"name"`
	} `json:"databases"`
}

// LayoutEntry is a layout or a folder of layouts.
type LayoutEntry struct {
	Name         string        `json:"name"`
	Table        string        `json:"table,omitempty"`
	IsFolder     bool          `json:"isFolder,omitempty"`
	FolderLayout []LayoutEntry `json:"folderLayoutNames,omitempty"`
}

// LayoutList is the response of /databases/{db}/layouts.
type LayoutList struct {
	Layouts []LayoutEntry `json:"layouts"`
}

// Names flattens folders and returns every layout name in order.
func (l LayoutList) Names() []string {
	var out []string
	var walk func([]LayoutEntry)
	walk = func(entries []LayoutEntry) {
		for _, e := range entries {
			if e.IsFolder {
				walk(e.FolderLayout)
				continue
			}
			out = append(out, e.Name)
		}
	}
	walk(l.Layouts)
	return out
}

// ScriptEntry is a script or a folder of scripts.
type ScriptEntry struct {
	Name         string        `json:"name"`
	IsFolder     bool          `json:"isFolder"`
	FolderScript []ScriptEntry `json:"folderScriptNames,omitempty"`
}

// ScriptList is the response of /databases/{db}/scripts.
type ScriptList struct {
	Scripts []ScriptEntry `json:"scripts"`
}

// FieldMetadata describes one field on a layout.
type FieldMetadata struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	DisplayType   string `json:"displayType"`
	Result        string `json:"result"`
	Global        bool   `json:"global"`
	AutoEnter     bool   `json:"autoEnter"`
	MaxRepeat     int    `json:"maxRepeat"`
	MaxCharacter  int    `json:"maxCharacters"`
	NotEmpty      bool   `json:"notEmpty"`
	Numeric       bool   `json:"numeric"`
	RepetitionEnd int    `json:"repetitionEnd"`
	TimeOfDay     bool   `json:"timeOfDay"`
}

// LayoutMetadataResponse is the response of /databases/{db}/layouts/{layout}.
type LayoutMetadataResponse struct {
	FieldMetaData  []FieldMetadata            `json:"fieldMetaData"`
	PortalMetaData map[string][]FieldMetadata `json:"portalMetaData"`
}

// RecordData is one row returned by list, get, and find.
type RecordData struct {
	FieldData  map[string]any              `json:"fieldData"`
	PortalData map[string][]map[string]any `json:"portalData,omitempty"`
	RecordID   string                      `json:"recordId"`
	ModID      string                      `json:"modId"`
}

// DataInfo summarizes a found set.
type DataInfo struct {
	Database         string `json:"database"`
	Layout           string `json:"layout"`
	Table            string `json:"table"`
	TotalRecordCount int    `json:"totalRecordCount"`
	FoundCount       int    `json:"foundCount"`
	ReturnedCount    int    `json:"returnedCount"`
}

// RecordsResponse is the payload of record reads.
type RecordsResponse struct {
	DataInfo DataInfo     `json:"dataInfo"`
	Data     []RecordData `json:"data"`
}

// RecordIDResponse is the payload of create and edit.
type RecordIDResponse struct {
	RecordID string `json:"recordId,omitempty"`
	ModID    string `json:"modId"`
}

// ScriptResult is the payload of a script run.
type ScriptResult struct {
	ScriptError  string `json:"scriptError"`
	ScriptResult string `json:"scriptResult,omitempty"`
}

// RecordRequest is the body of create and edit.
type RecordRequest struct {
	FieldData  map[string]any `json:"fieldData"`
	PortalData map[string]any `json:"portalData,omitempty"`
	ModID      string         `json:"modId,omitempty"`
}

// SortRule orders a find or list.
type SortRule struct {
	FieldName string `json:"fieldName"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// FindRequest is the body of _find.
type FindRequest struct {
	Query  []map[string]string `json:"query"`
	Sort   []SortRule          `json:"sort,omitempty"`
	Offset int                 `json:"offset,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
}

// GlobalsRequest is the body of a globals PATCH.
type GlobalsRequest struct {
	GlobalFields map[string]string `json:"globalFields"`
}
