package model

import "fmt"

// FetchRelatedKey — маркер в документе: был patch существующей записи,
// закэшированные связи у читателей могли устареть.
const FetchRelatedKey = "_should_fetch_related"

// LinkKey — ключ ссылки на запись коллекции: "<collection>_id".
func LinkKey(collection string) string { return collection + "_id" }

type SchemaIssue struct {
	Entity  string `json:"entity"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint проверяет противоречия между схемами реестра.
func Lint(reg *Registry) []SchemaIssue {
	var issues []SchemaIssue

	byCollection := map[string]string{}
	for _, s := range reg.Schemas() {
		coll := s.Collection()
		if other, dup := byCollection[coll]; dup {
			issues = append(issues, SchemaIssue{
				Entity:  s.Name(),
				Code:    "collection_shared",
				Message: fmt.Sprintf("collection %q is also used by %s", coll, other),
			})
		} else {
			byCollection[coll] = s.Name()
		}

		for _, name := range s.Relations() {
			rel, _ := s.Relation(name)
			if reg.byTarget(rel.Target) {
				continue
			}
			issues = append(issues, SchemaIssue{
				Entity:  s.Name(),
				Field:   name,
				Code:    "ref_target_unregistered",
				Message: fmt.Sprintf("relation target %s is not registered", rel.Target.Name()),
			})
		}

		// ключи ссылок, которые save допишет в документ, не должны совпадать с полями
		for _, name := range s.Relations() {
			rel, _ := s.Relation(name)
			key := LinkKey(rel.Target.Collection())
			if s.Has(key) {
				issues = append(issues, SchemaIssue{
					Entity:  s.Name(),
					Field:   key,
					Code:    "link_key_collision",
					Message: fmt.Sprintf("field %q is overwritten by the link to %s", key, rel.Target.Name()),
				})
			}
		}
	}
	return issues
}

func (r *Registry) byTarget(s *Schema) bool {
	got, ok := r.Lookup(s.Name())
	return ok && got == s
}
