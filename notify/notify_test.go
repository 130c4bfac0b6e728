package notify_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/google/memvfs/clock"
	"github.com/google/memvfs/inode"
	"github.com/google/memvfs/notify"
	"github.com/google/memvfs/pathutil"
)

type NotifyTest struct {
	suite.Suite
	store *inode.Store
	dir   *inode.Inode
}

func TestNotifySuite(t *testing.T) {
	suite.Run(t, new(NotifyTest))
}

func (t *NotifyTest) SetupTest() {
	t.store = inode.NewStore(&clock.RealClock{}, pathutil.NewCaseSensitiveComparator())
	t.dir = t.store.NewDirectory(0o755, 0, 0)
}

func (t *NotifyTest) TestDeliveryRespectsMask() {
	var got []notify.Event
	inst := notify.NewInstance(func(e notify.Event) { got = append(got, e) })

	_, err := inst.AddWatch("/d", t.dir, notify.IN_CREATE|notify.IN_DELETE)
	t.Require().NoError(err)

	t.dir.Notify(uint32(notify.IN_MODIFY), "foo", 0)
	t.Empty(got, "unmasked event should not be delivered")

	t.dir.Notify(uint32(notify.IN_CREATE), "foo", 0)
	t.Require().Len(got, 1)
	t.Equal("foo", got[0].Name)
	t.Equal(notify.IN_CREATE, got[0].Mask)
}

func (t *NotifyTest) TestMaskAddMerges() {
	inst := notify.NewInstance(func(notify.Event) {})

	wd1, err := inst.AddWatch("/d", t.dir, notify.IN_CREATE)
	t.Require().NoError(err)

	wd2, err := inst.AddWatch("/d", t.dir, notify.IN_DELETE|notify.IN_MASK_ADD)
	t.Require().NoError(err)
	t.Equal(wd1, wd2, "same path should reuse the existing watch descriptor")
	w, ok := t.dir.Watch(wd1)
	t.Require().True(ok)
	t.Equal(notify.IN_CREATE|notify.IN_DELETE, w.(*notify.Watch).Mask())

	var got []notify.Event
	inst2 := notify.NewInstance(func(e notify.Event) { got = append(got, e) })
	_, err = inst2.AddWatch("/e", t.dir, notify.IN_CREATE|notify.IN_DELETE)
	t.Require().NoError(err)
	t.dir.Notify(uint32(notify.IN_DELETE), "bar", 0)
	t.Require().Len(got, 1)
}

func (t *NotifyTest) TestRmWatchDeliversIgnoredOnce() {
	var got []notify.Event
	inst := notify.NewInstance(func(e notify.Event) { got = append(got, e) })

	wd, err := inst.AddWatch("/d", t.dir, notify.IN_ALL_EVENTS)
	t.Require().NoError(err)

	t.Require().NoError(inst.RmWatch(wd))
	t.Require().Len(got, 1)
	t.Equal(notify.IN_IGNORED, got[0].Mask)
	t.Equal(0, inst.WatchCount())
	t.Equal(0, t.dir.WatchCount())
}

func (t *NotifyTest) TestTeardownWatchesDeliversIgnored() {
	var got []notify.Event
	inst := notify.NewInstance(func(e notify.Event) { got = append(got, e) })
	_, err := inst.AddWatch("/d", t.dir, notify.IN_ALL_EVENTS)
	t.Require().NoError(err)

	t.dir.TeardownWatches()

	t.Require().Len(got, 1)
	t.Equal(notify.IN_IGNORED, got[0].Mask)
	t.Equal(0, t.dir.WatchCount())
}

func (t *NotifyTest) TestOneshotRemovesAfterDelivery() {
	var got []notify.Event
	inst := notify.NewInstance(func(e notify.Event) { got = append(got, e) })

	_, err := inst.AddWatch("/d", t.dir, notify.IN_CREATE|notify.IN_ONESHOT)
	t.Require().NoError(err)

	t.dir.Notify(uint32(notify.IN_CREATE), "a", 0)
	t.Require().Len(got, 1, "oneshot watch delivers its one event")
	t.NotEqual(notify.IN_IGNORED, got[0].Mask, "oneshot teardown must not emit IN_IGNORED")

	t.dir.Notify(uint32(notify.IN_CREATE), "b", 0)
	t.Len(got, 1, "oneshot watch must not fire twice")
	t.Equal(0, t.dir.WatchCount())
}

func (t *NotifyTest) TestAddWatchOnlyDirRejectsFile() {
	f := t.store.NewRegularFile(0o644, 0, 0)
	inst := notify.NewInstance(func(notify.Event) {})

	_, err := inst.AddWatch("/f", f, notify.IN_CREATE|notify.IN_ONLYDIR)
	t.Require().Error(err)
}

func (t *NotifyTest) TestFacadeTranslatesAndSuppressesIgnored() {
	var events []notify.ChangeEvent
	facade := notify.NewFacade(func(e notify.ChangeEvent) { events = append(events, e) })

	wd, err := facade.Instance().AddWatch("/d", t.dir, notify.IN_ALL_EVENTS)
	t.Require().NoError(err)

	t.dir.Notify(uint32(notify.IN_MODIFY), "x", 0)
	t.dir.Notify(uint32(notify.IN_CREATE), "y", 0)

	t.Require().NoError(facade.Instance().RmWatch(wd))

	t.Require().Len(events, 2, "IN_IGNORED from RmWatch must be suppressed")
	t.Equal(notify.KindChange, events[0].Kind)
	t.Equal(notify.KindRename, events[1].Kind)
}

func (t *NotifyTest) TestRenameCookiePairing() {
	var got []notify.Event
	inst := notify.NewInstance(func(e notify.Event) { got = append(got, e) })
	_, err := inst.AddWatch("/d", t.dir, notify.IN_MOVED_FROM|notify.IN_MOVED_TO)
	t.Require().NoError(err)

	cookie := notify.NextCookie()
	t.dir.Notify(uint32(notify.IN_MOVED_FROM), "old", cookie)
	t.dir.Notify(uint32(notify.IN_MOVED_TO), "new", cookie)

	t.Require().Len(got, 2)
	t.Equal(got[0].Cookie, got[1].Cookie)
	t.NotZero(got[0].Cookie)
}
