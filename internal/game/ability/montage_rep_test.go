package ability_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/spawnmaster/internal/game/ability"
	"github.com/cory-johannsen/spawnmaster/internal/game/animation"
)

type pair struct {
	serverAvatar   *fakeAvatar
	server         *ability.System
	observerAvatar *fakeAvatar
	observer       *ability.System
	restarts       int
}

func newPair(t tb, replay bool) *pair {
	t.Helper()
	p := &pair{
		serverAvatar:   newAvatar("p1", authorityNet),
		observerAvatar: newAvatar("p1", observerNet),
	}
	p.server = newSystem(t, p.serverAvatar, nil)
	lib, reg := fixtures(t)
	p.observer = ability.NewSystem(p.observerAvatar, ability.Deps{
		Abilities:       reg,
		Montages:        lib,
		Config:          ability.DefaultConfig(),
		Logger:          zap.NewNop(),
		IsPlayingReplay: func() bool { return replay },
	})
	// Every restart of an already-playing montage interrupts the previous instance.
	body(p.observerAvatar).Anim.OnEnded(func(_ *animation.Montage, interrupted bool) {
		if interrupted {
			p.restarts++
		}
	})
	return p
}

func (p *pair) replicate() {
	p.server.Tick()
	p.observer.SetRepAnimMontageInfoForMeshes(p.server.RepAnimMontageInfoForMeshes())
	p.observer.OnRepReplicatedAnimMontage()
}

func (p *pair) observed() *animation.Montage {
	return p.observer.CurrentMontageForMesh(body(p.observerAvatar))
}

func TestOnRep_StartsPlayback(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	m := p.observed()
	require.NotNil(t, m)
	assert.Equal(t, "long", m.Name)
	assert.True(t, body(p.observerAvatar).Anim.IsPlaying(m))
}

func TestOnRep_SameInstanceDoesNotRestart(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	m := p.observed()
	body(p.observerAvatar).Anim.Advance(0.05)
	body(p.serverAvatar).Anim.Advance(0.05)
	p.replicate()
	p.replicate()
	assert.Zero(t, p.restarts)
	assert.InDelta(t, 0.05, body(p.observerAvatar).Anim.Position(m), 1e-9)
}

func TestOnRep_NewInstanceRestartsOnce(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	p.replicate()
	assert.Equal(t, 1, p.restarts)
}

func TestOnRep_LocallyControlledSkipped(t *testing.T) {
	p := newPair(t, false)
	p.observerAvatar.net = ownerNet
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	assert.Nil(t, p.observed())
}

func TestOnRep_PendingUntilAnimInstanceReady(t *testing.T) {
	p := newPair(t, false)
	anim := body(p.observerAvatar).Anim
	body(p.observerAvatar).Anim = nil
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	assert.True(t, p.observer.PendingMontageRep())

	body(p.observerAvatar).Anim = anim
	p.observer.RetryPendingMontageRep()
	assert.False(t, p.observer.PendingMontageRep())
	assert.NotNil(t, p.observed())
}

func TestOnRep_PositionCorrectionOverThreshold(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "fire")
	var notifies []string
	body(p.observerAvatar).Anim.OnNotify(func(_ *animation.Montage, n string) { notifies = append(notifies, n) })
	require.True(t, p.server.TryActivateByTag("Ability.Fire"))
	p.replicate()

	body(p.serverAvatar).Anim.Advance(0.4)
	p.replicate()
	m := p.observed()
	assert.InDelta(t, 0.4, body(p.observerAvatar).Anim.Position(m), 1e-9)
	assert.Equal(t, []string{"shot"}, notifies, "fast-forward fires skipped notifies")
}

func TestOnRep_SmallErrorIgnored(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	body(p.serverAvatar).Anim.Advance(0.05)
	p.replicate()
	assert.Zero(t, body(p.observerAvatar).Anim.Position(p.observed()))
}

func TestOnRep_ReplayWidensThreshold(t *testing.T) {
	p := newPair(t, true)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	body(p.serverAvatar).Anim.Advance(0.3)
	p.replicate()
	assert.Zero(t, body(p.observerAvatar).Anim.Position(p.observed()))

	body(p.serverAvatar).Anim.Advance(0.3)
	p.replicate()
	assert.InDelta(t, 0.6, body(p.observerAvatar).Anim.Position(p.observed()), 1e-9)
}

func TestOnRep_StopReplicated(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	m := p.observed()
	p.server.CurrentMontageStopForMesh(body(p.serverAvatar), 0.2)
	p.replicate()
	assert.False(t, body(p.observerAvatar).Anim.IsPlaying(m))
	assert.InDelta(t, 0.2, body(p.observerAvatar).Anim.BlendTime(m), 1e-9)
}

func TestOnRep_SkipPlayRateForcesUnitRate(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	body(p.serverAvatar).Anim.SetPlayRate(p.server.CurrentMontageForMesh(body(p.serverAvatar)), 2)
	p.server.SetSkipFlags(animation.MeshThirdPersonBody, true, false)
	p.replicate()
	assert.Equal(t, 1.0, body(p.observerAvatar).Anim.PlayRate(p.observed()))
}

func TestOnRep_PlayRateCorrected(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.replicate()
	body(p.serverAvatar).Anim.SetPlayRate(p.server.CurrentMontageForMesh(body(p.serverAvatar)), 1.5)
	p.replicate()
	assert.Equal(t, 1.5, body(p.observerAvatar).Anim.PlayRate(p.observed()))
}

func TestOnRep_SkipPositionCorrection(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "long")
	require.True(t, p.server.TryActivateByTag("Ability.Long"))
	p.server.SetSkipFlags(animation.MeshThirdPersonBody, false, true)
	p.replicate()
	body(p.serverAvatar).Anim.Advance(3)
	p.replicate()
	assert.Zero(t, body(p.observerAvatar).Anim.Position(p.observed()))
}

func TestOnRep_WrongSectionTeleports(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "fire")
	require.True(t, p.server.TryActivateByTag("Ability.Fire"))
	p.replicate()
	body(p.serverAvatar).Anim.Advance(0.6)
	// The observer is still in Start while the server is in Recover. It is moved to the
	// start of Recover and the remaining error is within the threshold.
	p.replicate()
	assert.InDelta(t, 0.5, body(p.observerAvatar).Anim.Position(p.observed()), 1e-9)
}

func TestOnRep_NextSectionRelinked(t *testing.T) {
	p := newPair(t, false)
	give(t, p.server, "fire")
	require.True(t, p.server.TryActivateByTag("Ability.Fire"))
	serverMontage := p.server.CurrentMontageForMesh(body(p.serverAvatar))
	require.True(t, body(p.serverAvatar).Anim.SetNextSection("Start", "", serverMontage))
	p.replicate()
	m := p.observed()
	assert.Equal(t, animation.IndexNone, body(p.observerAvatar).Anim.NextSectionID(m, 0))
}

func TestProperty_OnRep_RestartsExactlyOncePerNewInstance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		p := newPair(rt, false)
		give(rt, p.server, "long")
		plays := 0
		ops := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 30).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				if p.server.TryActivateByTag("Ability.Long") {
					plays++
				}
			case 1:
				p.replicate()
			case 2:
				body(p.serverAvatar).Anim.Advance(0.01)
				body(p.observerAvatar).Anim.Advance(0.01)
			}
		}
		p.replicate()
		p.replicate()
		// The first start interrupts nothing; each later distinct instance observed
		// interrupts the previous one exactly once.
		if plays > 0 && p.restarts > plays-1 {
			rt.Fatalf("observer restarted %d times for %d server plays", p.restarts, plays)
		}
		if plays > 0 && p.observed() == nil {
			rt.Fatalf("observer not playing after %d server plays", plays)
		}
	})
}
