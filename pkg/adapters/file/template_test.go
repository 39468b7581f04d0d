package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/witmorph/pkg/adapters/file"
	"github.com/aretw0/witmorph/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateLoader_Contract(t *testing.T) {
	loader := file.NewTemplateLoader(filepath.Join("testdata", "agile6.yaml"))
	tests.TemplateLoaderContractTest(t, loader, map[string][]string{
		"User Story": {
			"System.Id", "System.Title", "System.State",
			"Microsoft.VSTS.Common.StackRank", "Microsoft.VSTS.Scheduling.StoryPoints",
			"Microsoft.VSTS.Common.BusinessValue", "Microsoft.VSTS.Common.AcceptanceCriteria",
			"System.Description",
		},
		"Bug": {
			"System.Id", "System.Title", "System.State",
			"Microsoft.VSTS.Common.StackRank", "Microsoft.VSTS.TCM.ReproSteps",
			"Microsoft.VSTS.Common.Severity", "Microsoft.VSTS.Common.Priority",
		},
		"Task": {
			"System.Id", "System.Title", "System.State",
			"Microsoft.VSTS.Common.StackRank", "Microsoft.VSTS.Scheduling.RemainingWork",
			"Microsoft.VSTS.Common.Activity", "Microsoft.VSTS.Scheduling.OriginalEstimate",
		},
		"Issue": {"System.Id", "System.Title", "System.State", "Microsoft.VSTS.Common.Priority"},
	})
}

func TestTemplateLoader_Workflow(t *testing.T) {
	tmpl, err := file.NewTemplateLoader(filepath.Join("testdata", "scrum2.yaml")).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Microsoft Visual Studio Scrum", tmpl.Name)
	assert.Equal(t, "2.0", tmpl.Version)

	task, ok := tmpl.Entity("Task")
	require.True(t, ok)
	assert.Equal(t, []string{"To Do", "In Progress", "Done", "Removed"}, task.Workflow.States)
	assert.True(t, task.Workflow.HasState("In Progress"))
	assert.False(t, task.Workflow.HasState("Active"))
	require.NotEmpty(t, task.Workflow.Transitions)
	assert.Equal(t, "", task.Workflow.Transitions[0].From)
}

func TestTemplateLoader_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mini.json")
	content := `{"entities":[{"name":"Bug","fields":[{"ref":"System.Title"}],"workflow":{"states":["Active"]}}]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tmpl, err := file.NewTemplateLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mini", tmpl.Name, "name defaults to the file name")
	bug, ok := tmpl.Entity("Bug")
	require.True(t, ok)
	assert.True(t, bug.HasField("System.Title"))
}

func TestTemplateLoader_Errors(t *testing.T) {
	t.Run("Missing File", func(t *testing.T) {
		_, err := file.NewTemplateLoader(filepath.Join(t.TempDir(), "nope.yaml")).Load(context.Background())
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Unknown Key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("name: x\nentitys: []\n"), 0644))
		_, err := file.NewTemplateLoader(path).Load(context.Background())
		assert.Error(t, err)
	})
}

func TestMappingSource(t *testing.T) {
	m, err := file.NewMappingSource(filepath.Join("testdata", "scrum2-agile6.yaml")).Mapping(context.Background())
	require.NoError(t, err)

	require.Len(t, m.Entities, 4)
	assert.Equal(t, "Product Backlog Item", m.Entities[0].Source, "declaration order is preserved")

	target, ok := m.TargetEntityFor("Product Backlog Item")
	assert.True(t, ok)
	assert.Equal(t, "User Story", target)

	target, ok = m.TargetEntityFor("Impediment")
	assert.True(t, ok)
	assert.Empty(t, target, "impediment is retired")

	_, ok = m.TargetEntityFor("Feature")
	assert.False(t, ok)

	state, ok := m.TargetStateFor("Task", "In Progress")
	assert.True(t, ok)
	assert.Equal(t, "Active", state)

	_, ok = m.TargetFieldFor("Bug", "Microsoft.VSTS.Common.BacklogPriority")
	assert.False(t, ok, "copied fields are not field correspondences")
}
