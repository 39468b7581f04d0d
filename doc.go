/*
Package witmorph computes safe, ordered migration plans between two versions
of a process template and applies them to a live record store.

A process template is a set of entity types (work item types), each with
fields and a workflow of states. A mapping pairs source types with target
types and says how fields and states correspond. From a source template, a
target template and a mapping, witmorph produces a plan: a flat list of
atomic actions ordered by phase so that no data is destroyed before it has
been exported or copied.

# Phases

Every action belongs to exactly one phase, and a plan never lists an action
before one of a lower phase:

 1. Rename: entity types, fields and states get their target names.
 2. Export: data about to be destroyed is written to an archive.
 3. Copy: field values are copied into their new homes.
 4. Modify state: records move between workflow states.
 5. Destroy: retired types, fields and states are removed.

# Usage

	planner := witmorph.New(witmorph.WithLogger(logger))
	plan, err := planner.PlanFiles(ctx, "scrum.yaml", "agile.yaml", "mapping.yaml")
	if err != nil {
		log.Fatal(err)
	}
	if plan.HasErrors() {
		// Entities listed in plan.Errors contribute no steps.
	}

	exec := witmorph.NewExecutor(store, witmorph.WithArchive(archive))
	report, err := exec.Run(ctx, plan)

Templates and mappings are read from YAML or JSON files, or from a directory
holding one document per entity type. Record stores, archives and checkpoint
stores are pluggable through the interfaces in pkg/ports.
*/
package witmorph
