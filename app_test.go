package voxelrender

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockResource struct {
	hits int
}

func TestApp_addResources(t *testing.T) {
	app := &App{
		resources: make(map[reflect.Type]any),
	}

	res := &mockResource{}
	app.addResources(res)

	assert.Contains(t, app.resources, reflect.TypeOf(res).Elem(), "mockResource should be in resources map")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(res)), func() {
		app.addResources(res)
	})

	require.Panics(t, func() {
		app.addResources(mockResource{})
	}, "non-pointer resources must be rejected")
}

func TestApp_SystemDependencyInjection(t *testing.T) {
	app := NewAppBuilder().Build()
	app.addResources(&mockResource{})

	app.UseSystem(System(func(res *mockResource) {
		res.hits++
	}).InStage(Update))
	app.UseSystem(System(func(cmd *Commands, res *mockResource) {
		res.hits++
	}).InStage(Render))

	app.RunFrame()
	app.RunFrame()

	res := GetResource[mockResource](app)
	require.NotNil(t, res)
	assert.Equal(t, 4, res.hits)
}

func TestApp_UnresolvableDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(missing *mockResource) {}).InStage(Update))

	require.Panics(t, func() {
		app.RunFrame()
	})
}

func TestApp_UnknownStagePanics(t *testing.T) {
	app := NewAppBuilder().Build()
	require.Panics(t, func() {
		app.UseSystem(System(func() {}).InStage(Stage{Name: "Bogus"}))
	})
}

func TestApp_CommandsFlushBetweenStages(t *testing.T) {
	app := NewAppBuilder().Build()

	var seen []EntityId
	app.UseSystem(System(func(cmd *Commands) {
		cmd.AddEntity(posComp{x: 7})
	}).InStage(Update))
	app.UseSystem(System(func(cmd *Commands) {
		MakeQuery1[posComp](cmd).Map(func(eid EntityId, p *posComp) bool {
			seen = append(seen, eid)
			return true
		})
	}).InStage(PostUpdate))

	app.RunFrame()
	assert.Len(t, seen, 1, "entity added in Update must be visible in PostUpdate")
}

type quitModule struct{}

func (quitModule) Install(app *App, cmd *Commands) {
	cmd.UseSystem(System(func(cmd *Commands) {
		cmd.Quit()
	}).InStage(Finale))
}

func TestApp_RunStopsOnQuit(t *testing.T) {
	app := NewAppBuilder().UseModule(quitModule{}).Build()
	app.Run()
	assert.True(t, app.quit)
}

func TestQuery_Optionals(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()

	with := cmd.AddEntity(posComp{x: 1}, tagComp{})
	without := cmd.AddEntity(posComp{x: 2})
	app.FlushCommands()

	got := make(map[EntityId]bool)
	MakeQuery2[posComp, tagComp](cmd).Map(func(eid EntityId, p *posComp, tag *tagComp) bool {
		got[eid] = tag != nil
		return true
	}, tagComp{})

	require.Len(t, got, 2)
	assert.True(t, got[with])
	assert.False(t, got[without])
}

func TestQuery_StopsWhenCallbackReturnsFalse(t *testing.T) {
	app := NewAppBuilder().Build()
	cmd := app.Commands()
	for i := 0; i < 5; i++ {
		cmd.AddEntity(posComp{x: int32(i)})
	}
	app.FlushCommands()

	count := 0
	MakeQuery1[posComp](cmd).Map(func(eid EntityId, p *posComp) bool {
		count++
		return false
	})
	assert.Equal(t, 1, count)
}
