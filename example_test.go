package witmorph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/witmorph"
	"github.com/aretw0/witmorph/pkg/adapters/memory"
	"github.com/aretw0/witmorph/pkg/domain"
	"github.com/aretw0/witmorph/pkg/ports"
)

func exampleTemplates() (domain.ProcessTemplate, domain.ProcessTemplate, domain.Mapping) {
	source := domain.ProcessTemplate{
		Name: "Basic",
		Entities: []domain.EntityType{
			{
				Name:     "Issue",
				Fields:   []domain.Field{{RefName: "Title"}, {RefName: "Effort"}},
				Workflow: domain.Workflow{States: []string{"New", "Done"}},
			},
			{
				Name:     "Spike",
				Fields:   []domain.Field{{RefName: "Title"}},
				Workflow: domain.Workflow{States: []string{"Open"}},
			},
		},
	}
	target := domain.ProcessTemplate{
		Name: "Agile",
		Entities: []domain.EntityType{
			{
				Name:     "Story",
				Fields:   []domain.Field{{RefName: "Title"}, {RefName: "Points"}},
				Workflow: domain.Workflow{States: []string{"New", "Closed"}},
			},
		},
	}
	mapping := domain.Mapping{
		Entities: []domain.EntityMap{
			{
				Source: "Issue",
				Target: "Story",
				States: []domain.StateMap{{Source: "Done", Target: "Closed"}},
				Copies: []domain.CopyRule{{From: "Effort", To: "Points"}},
			},
			{Source: "Spike"},
		},
	}
	return source, target, mapping
}

// ExampleNew demonstrates planning from in-memory templates.
func ExampleNew() {
	source, target, mapping := exampleTemplates()
	srcLoader, err := memory.NewLoader(source)
	if err != nil {
		log.Fatal(err)
	}
	tgtLoader, err := memory.NewLoader(target)
	if err != nil {
		log.Fatal(err)
	}

	plan, err := witmorph.New().PlanFrom(context.Background(), srcLoader, tgtLoader, memory.NewMappingSource(mapping))
	if err != nil {
		log.Fatal(err)
	}

	for i, step := range plan.Steps {
		fmt.Printf("%d. [%s] %s\n", i+1, step.Phase(), step)
	}

	// Output:
	// 1. [rename] rename type "Issue" to "Story"
	// 2. [export] export Effort of "Story"
	// 3. [export] export all fields of "Spike"
	// 4. [copy] copy "Effort" to "Points" on "Story"
	// 5. [modify-state] move "Story" records from state "Done" to "Closed"
	// 6. [destroy] destroy field "Effort" of "Story"
	// 7. [destroy] destroy type "Spike"
}

// ExampleNewExecutor demonstrates applying a plan to an in-memory record store.
func ExampleNewExecutor() {
	ctx := context.Background()
	source, target, mapping := exampleTemplates()

	plan, err := witmorph.New().Plan(ctx, &source, &target, &mapping)
	if err != nil {
		log.Fatal(err)
	}

	store := memory.NewStore()
	_, _ = store.Insert(ctx, domain.Record{Type: "Issue", State: "Done", Fields: map[string]any{"Title": "Login", "Effort": 3}})
	_, _ = store.Insert(ctx, domain.Record{Type: "Spike", State: "Open", Fields: map[string]any{"Title": "Try caching"}})

	archive := memory.NewArchive()
	report, err := witmorph.NewExecutor(store, witmorph.WithArchive(archive)).Run(ctx, plan)
	if err != nil {
		log.Fatal(err)
	}

	stories, _ := store.Query(ctx, ports.RecordQuery{Type: "Story"})
	spikes, _ := store.Query(ctx, ports.RecordQuery{Type: "Spike"})
	fmt.Println("steps applied:", report.Applied())
	fmt.Println("story:", stories[0].State, stories[0].Fields["Title"], stories[0].Fields["Points"], stories[0].Fields["Effort"])
	fmt.Println("spikes left:", len(spikes))
	fmt.Println("exports:", len(archive.Keys()))

	// Output:
	// steps applied: 7
	// story: Closed Login 3 <nil>
	// spikes left: 0
	// exports: 2
}
