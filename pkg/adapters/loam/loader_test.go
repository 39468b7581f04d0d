package loam

import (
	"context"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/witmorph/internal/testutils"
	"github.com/aretw0/witmorph/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bugDoc = `---
name: Bug
order: 2
fields:
  - ref: System.Title
    name: Title
    type: String
  - ref: Microsoft.VSTS.Common.StackRank
    name: Stack Rank
    type: Double
workflow:
  states: [Active, Resolved, Closed]
  transitions:
    - from: Active
      to: Resolved
---
Tracks defects.`

const storyDoc = `---
name: User Story
order: 1
fields:
  - ref: System.Title
workflow:
  transitions:
    - from: ""
      to: New
    - from: New
      to: Active
---
A unit of user value.`

func TestLoader_Contract(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	testutils.SaveDocs(t, repo, map[string]string{
		"bug.md":   bugDoc,
		"story.md": storyDoc,
	})

	loader := New(loam.NewTypedRepository[EntityMetadata](repo), "agile", "6.0")
	tests.TemplateLoaderContractTest(t, loader, map[string][]string{
		"Bug":        {"System.Title", "Microsoft.VSTS.Common.StackRank"},
		"User Story": {"System.Title"},
	})
}

func TestLoader_OrderAndWorkflow(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	testutils.SaveDocs(t, repo, map[string]string{
		"bug.md":   bugDoc,
		"story.md": storyDoc,
	})

	tmpl, err := New(loam.NewTypedRepository[EntityMetadata](repo), "agile", "6.0").Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"User Story", "Bug"}, tmpl.EntityNames(), "ordered by the order key")
	story, ok := tmpl.Entity("User Story")
	require.True(t, ok)
	assert.Equal(t, []string{"New", "Active"}, story.Workflow.States, "states implied by transitions")

	bug, ok := tmpl.Entity("Bug")
	require.True(t, ok)
	f, ok := bug.Field("Microsoft.VSTS.Common.StackRank")
	require.True(t, ok)
	assert.Equal(t, "Double", f.Type)
}

func TestLoader_NameFallsBackToDocumentID(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	testutils.SaveDocs(t, repo, map[string]string{
		"task.md": "---\nfields:\n  - ref: System.Title\n---\n",
	})

	tmpl, err := New(loam.NewTypedRepository[EntityMetadata](repo), "x", "").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"task"}, tmpl.EntityNames())
}

func TestLoader_Collision(t *testing.T) {
	_, repo := testutils.SetupTestRepo(t)
	testutils.SaveDocs(t, repo, map[string]string{
		"bug.md":   bugDoc,
		"other.md": "---\nname: Bug\n---\n",
	})

	_, err := New(loam.NewTypedRepository[EntityMetadata](repo), "x", "").Load(context.Background())
	assert.ErrorContains(t, err, "collision detected")
}

func TestOpen(t *testing.T) {
	dir, repo := testutils.SetupTestRepo(t)
	testutils.SaveDocs(t, repo, map[string]string{"bug.md": bugDoc})

	loader, err := Open(dir)
	require.NoError(t, err)
	tmpl, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, tmpl.Name)
	assert.Equal(t, []string{"Bug"}, tmpl.EntityNames())
}
