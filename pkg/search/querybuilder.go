package search

// Query is a backend search document. It is a plain map rather than a
// fixed struct because the four builders below attach an optional facet
// clause the go-elasticsearch typed request bodies don't model uniformly.
type Query map[string]any

// Generic wraps a raw query string with a timestamp-descending sort and,
// when facet fields are given, a terms facet over them. This is the base
// builder every other intent composes.
func Generic(rawQuery string, facet ...string) Query {
	q := Query{
		"sort": map[string]any{
			"@timestamp": map[string]any{"order": "desc"},
		},
		"query": map[string]any{
			"query_string": map[string]any{
				"query": rawQuery,
			},
		},
	}
	if len(facet) == 0 {
		return q
	}
	data := map[string]any{"size": 200}
	if len(facet) == 1 {
		data["field"] = facet[0]
	} else {
		data["fields"] = facet
	}
	q["facets"] = map[string]any{
		"tag": map[string]any{"terms": data},
	}
	return q
}

// SinglePatch narrows a catalog entry's raw query to one patchset's
// build, the Classifier's workhorse query.
func SinglePatch(rawQuery, change, patch, shortBuildUUID string) Query {
	return Generic(rawQuery +
		` AND build_change:"` + change + `"` +
		` AND build_patchset:"` + patch + `"` +
		` AND build_uuid:` + shortBuildUUID + `*`)
}

// Readiness builds the Phase 1 "console present" query: an exact literal
// match for the completion marker of one job's console log.
func Readiness(change, patch, name, shortBuildUUID string) Query {
	return Generic(`filename:"console.html" AND ` +
		`message:"[SCP] Copying console log" ` +
		`AND build_status:"FAILURE" ` +
		`AND build_change:"` + change + `" ` +
		`AND build_patchset:"` + patch + `" ` +
		`AND build_name:"` + name + `" ` +
		`AND build_uuid:` + shortBuildUUID + `*`)
}

// FilesReady builds the Phase 2 "required files present" query: the same
// scope as Readiness, faceted on filename so the caller can diff the
// returned set against a job's required-files list.
func FilesReady(change, patch, name, shortBuildUUID string) Query {
	return Generic(`build_status:"FAILURE" `+
		`AND build_change:"`+change+`" `+
		`AND build_patchset:"`+patch+`" `+
		`AND build_name:"`+name+`" `+
		`AND build_uuid:`+shortBuildUUID+`*`,
		"filename")
}
