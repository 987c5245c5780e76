package fmrest

import (
	"net/url"
	"strconv"
)

// Endpoint is anything that resolves to a path relative to the versioned API root.
type Endpoint interface {
	Path() string
}

// Path is a literal endpoint path such as "/databases".
type Path string

// Path implements Endpoint.
func (p Path) Path() string {
	if p != "" && p[0] != '/' {
		return "/" + string(p)
	}
	return string(p)
}

func seg(s string) string {
	return url.PathEscape(s)
}

// ProductInfo is GET /productInfo.
func ProductInfo() Path { return "/productInfo" }

// Databases is GET /databases.
func Databases() Path { return "/databases" }

// Layouts lists the layouts of a hosted database.
func Layouts(db string) Path {
	return Path("/databases/" + seg(db) + "/layouts")
}

// LayoutMetadata returns field and portal metadata for a layout.
func LayoutMetadata(db, layout string) Path {
	return Path("/databases/" + seg(db) + "/layouts/" + seg(layout))
}

// Scripts lists the scripts of a hosted database.
func Scripts(db string) Path {
	return Path("/databases/" + seg(db) + "/scripts")
}

// Records is the record collection of a layout (list with GET, create with POST).
func Records(db, layout string) Path {
	return Path("/databases/" + seg(db) + "/layouts/" + seg(layout) + "/records")
}

// Record addresses a single record by its record ID.
func Record(db, layout string, recordID int) Path {
	return Path(string(Records(db, layout)) + "/" + strconv.Itoa(recordID))
}

// Find is POST /databases/{db}/layouts/{layout}/_find.
func Find(db, layout string) Path {
	return Path("/databases/" + seg(db) + "/layouts/" + seg(layout) + "/_find")
}

// Container addresses a container field repetition for uploads.
// A repetition below 1 is treated as 1.
func Container(db, layout string, recordID int, field string, repetition int) Path {
	if repetition < 1 {
		repetition = 1
	}
	return Path(string(Record(db, layout, recordID)) + "/containers/" + seg(field) + "/" + strconv.Itoa(repetition))
}

// Globals sets global field values for the session (PATCH).
func Globals(db string) Path {
	return Path("/databases/" + seg(db) + "/globals")
}

// Session addresses an existing session. Only DELETE (logout) is used.
func Session(db, token string) Path {
	return Path("/databases/" + seg(db) + "/sessions/" + seg(token))
}

// RunScript executes a script in the context of a layout (GET).
func RunScript(db, layout, script string) Path {
	return Path("/databases/" + seg(db) + "/layouts/" + seg(layout) + "/script/" + seg(script))
}
