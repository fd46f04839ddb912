// Package harness runs query scenarios against a fresh in-memory store.
//
// A scenario declares the views to load, the instances to write and a flow
// of queries with their expected results:
//
//	name: sites_by_region
//	description: "Aggregated views group by their declared fields"
//	views: sites.cue
//	setup:
//	  - view: Site
//	    items:
//	      - {externalId: oslo, space: sites, name: Oslo, region: north}
//	flow:
//	  - name: all
//	    view: Site
//	    query: {limit: 10}
//	    expect:
//	      count: 1
//	      items: [{externalId: oslo}]
//	assertions:
//	  - type: result_contains
//	    step: all
//	    match: {name: Oslo}
//	  - type: final_state
//	    view: Site
//	    externalId: oslo
//	    space: sites
//	    expect: {region: north}
//
// Queries use the query file format of package queryfile. Expected items
// are matched as subsets: only the listed keys are compared, and numbers
// compare by value, so 4 matches 4.0.
//
// # Assertion Types
//
//   - result_contains: some item of a step matches the given properties
//   - result_order: values of a property appear in the given order
//   - result_count: a step returned exactly N items
//   - final_state: a stored instance holds the given properties
//
// Every run numbers its steps from 1, so the trace of a scenario is stable
// and can be compared against a golden file.
package harness
