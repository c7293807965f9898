package template

import (
	"testing"
	"time"

	"github.com/mohitkumar/praxis/model"
	"github.com/mohitkumar/praxis/persistence/inmem"
	"github.com/mohitkumar/praxis/util"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	clock := util.NewFakeClock(time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC))
	return NewStore(inmem.NewInmemMetadataStorage(), clock)
}

func TestPublishFreezesVersions(t *testing.T) {
	s := newTestStore()
	id, err := s.SaveDraft(validTemplate())
	require.NoError(t, err)

	v1, err := s.Publish(id)
	require.NoError(t, err)
	require.Equal(t, 1, v1)

	// edit the draft and publish again
	draft, err := s.GetDraft(id)
	require.NoError(t, err)
	draft.Stages[0].Name = "Preparation v2"
	_, err = s.SaveDraft(*draft)
	require.NoError(t, err)

	v2, err := s.Publish(id)
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	// version 1 must stay resolvable and untouched
	frozen, err := s.GetVersion(id, 1)
	require.NoError(t, err)
	require.Equal(t, "Preparation", frozen.Stages[0].Name)

	latest, version, err := s.GetPublished(id)
	require.NoError(t, err)
	require.Equal(t, 2, version)
	require.Equal(t, "Preparation v2", latest.Stages[0].Name)
}

func TestPublishRejectsInvalidDraft(t *testing.T) {
	s := newTestStore()
	tmpl := validTemplate()
	tmpl.Stages[0].ProgressConditions = "done(task_efile)"
	id, err := s.SaveDraft(tmpl)
	require.NoError(t, err)

	var verr model.ValidationError
	_, err = s.Publish(id)
	require.ErrorAs(t, err, &verr)

	// nothing was published
	_, _, err = s.GetPublished(id)
	require.Error(t, err)
}

func TestDraftEditsDoNotTouchPublished(t *testing.T) {
	s := newTestStore()
	id, err := s.SaveDraft(validTemplate())
	require.NoError(t, err)
	_, err = s.Publish(id)
	require.NoError(t, err)

	draft, err := s.GetDraft(id)
	require.NoError(t, err)
	draft.Name = "Tax Filing (edited)"
	_, err = s.SaveDraft(*draft)
	require.NoError(t, err)

	published, _, err := s.GetPublished(id)
	require.NoError(t, err)
	require.Equal(t, "Tax Filing", published.Name)
}

func TestGetPublishedUnknownTemplate(t *testing.T) {
	s := newTestStore()
	_, _, err := s.GetPublished("missing")
	require.Error(t, err)
}
