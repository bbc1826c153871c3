package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicetyped/botkit/internal/botservice"
	"github.com/voicetyped/botkit/internal/connectutil"
	"github.com/voicetyped/botkit/internal/samples"
	"github.com/voicetyped/botkit/pkg/activity"
	"github.com/voicetyped/botkit/pkg/bot"
	"github.com/voicetyped/botkit/pkg/dialog"
	"github.com/voicetyped/botkit/pkg/state"
	"github.com/voicetyped/botkit/pkg/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conv := state.NewConversationState(storage.NewMemoryStorage())
	accessor := state.NewProperty[*dialog.DialogState](conv, "DialogState")
	set := samples.Register(dialog.NewDialogSet(accessor))
	dialogs := func() *dialog.DialogSet { return set }

	h := botservice.NewHandler(botservice.Config{
		Adapter:      bot.NewAdapter().Use(state.AutoSave(conv)),
		Bot:          samples.NewRunner(dialogs, samples.NewDispatcher()),
		Conversation: conv,
		DialogState:  accessor,
		Dialogs:      dialogs,
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, connectutil.DefaultOptions()...)
	srv := httptest.NewServer(connectutil.H2CHandler(mux))
	t.Cleanup(srv.Close)
	return srv
}

func texts(out []activity.Activity) []string {
	s := make([]string, len(out))
	for i, a := range out {
		s[i] = a.Text
	}
	return s
}

func TestConversation(t *testing.T) {
	srv := newTestServer(t)
	ctx := t.Context()
	c := NewFromHTTPClient(srv.Client(), srv.URL)

	cv := c.Conversation("console", "", "ada")
	require.NotEmpty(t, cv.Ref().ConversationID)

	out, err := cv.Join(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{samples.WelcomeText}, texts(out))

	out, err = cv.Say(ctx, "check in")
	require.NoError(t, err)
	assert.Equal(t, []string{"What is your room number?"}, texts(out))
	assert.Equal(t, "ada", out[0].Recipient.ID)

	snap, err := c.Stack(ctx, cv.Ref())
	require.NoError(t, err)
	require.Len(t, snap.Stack, 2)
	assert.Equal(t, samples.CheckInID, snap.Stack[0].ID)

	ids, err := c.Dialogs(ctx)
	require.NoError(t, err)
	assert.Contains(t, ids, samples.MenuID)

	require.NoError(t, cv.Reset(ctx))
	_, err = c.Stack(ctx, cv.Ref())
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestSendInvalidActivity(t *testing.T) {
	srv := newTestServer(t)
	c := NewFromHTTPClient(srv.Client(), srv.URL)

	_, err := c.Send(t.Context(), activity.Activity{Type: activity.TypeMessage})
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}
