// Package querystate synchronizes component state with URL query parameters.
//
// A Binding maps one logical piece of state to a set of query-string keys,
// with default-value elision and bracket-notation array encoding. The codec
// is pure and stateless: the current URL is owned by the session's Location,
// and every write is a merge patch against the query string as it exists at
// call time, so independent bindings on the same URL never clobber each
// other's keys.
//
// The hook-style API mirrors the rest of the framework:
//
//	search := querystate.Use("q", "")
//	search.Get()          // decoded from the current URL, "" when absent
//	search.Set("pods")    // URL becomes ?q=pods (replace-style navigation)
//	search.Set("")        // default elision: q is removed from the URL
//
// Multi-key object state uses an explicit codec pair:
//
//	type Filters struct {
//	    Query  string
//	    Enable bool
//	}
//	fs, err := querystate.UseBinding(querystate.Config[Filters]{
//	    Defaults: Filters{Query: "", Enable: true},
//	    Encode: func(f Filters) querystate.Record {
//	        return querystate.Record{
//	            "q":      querystate.String(f.Query),
//	            "enable": querystate.Bool(f.Enable),
//	        }
//	    },
//	    Decode: func(r querystate.Record) Filters {
//	        return Filters{
//	            Query:  r.Get("q"),
//	            Enable: r.GetBool("enable", true),
//	        }
//	    },
//	})
package querystate
