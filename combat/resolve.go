package combat

// Outcome classifies what one side's move amounted to in a resolved turn.
type Outcome string

const (
	OutcomeHit       Outcome = "hit"
	OutcomeGuarding  Outcome = "guarding"
	OutcomeStaggered Outcome = "staggered"
	OutcomeShattered Outcome = "shattered"
	OutcomeStunned   Outcome = "stunned"
	// OutcomeClash is the simultaneous block-vs-block result. No damage is
	// exchanged; it is deliberately distinct from a normal guarding outcome.
	OutcomeClash Outcome = "clash"
)

// Side identifies a seat, or none.
type Side int

const (
	SideNone Side = 0
	Side1    Side = 1
	Side2    Side = 2
)

// PlayerState is one side's live resources going into a turn.
type PlayerState struct {
	Health   int
	Energy   int
	Guard    int
	Stunned  bool // set last turn, clears with this one
	Modifier Modifier
}

// InitialPlayerState is where both sides start every round.
func InitialPlayerState() PlayerState {
	return PlayerState{Health: MaxHealth, Energy: StartEnergy}
}

// TurnInput is everything ResolveTurn needs. Both moves are the requested
// moves; affordability downgrades happen inside resolution.
type TurnInput struct {
	P1, P2         PlayerState
	P1Move, P2Move Move
}

// PlayerResult is one side of a resolved turn.
type PlayerResult struct {
	Requested   Move
	Move        Move // after any affordability downgrade
	Outcome     Outcome
	DamageDealt int
	Health      int
	Energy      int
	Guard       int
	StunnedNext bool
}

// TurnResult is the full outcome of one resolved turn.
type TurnResult struct {
	P1, P2    PlayerResult
	RoundOver bool
	Winner    Side
}

// role is the table classification of one side's move against the other's.
type role int

const (
	roleTrade     role = iota // mirror attack, both land
	roleLand                  // clean hit, full damage
	roleCountered             // lost the interaction, deals nothing
	roleGuarded               // punch absorbed by a block, chip only
	roleBlocking              // the block absorbing a punch
	roleBypass                // PhantomFist punch through a block
	roleShatterer             // special against a block
	roleShattered             // the block a special went through
	roleClash                 // block vs block
)

type fighter struct {
	state       PlayerState
	requested   Move
	move        Move
	spent       int
	role        role
	outcome     Outcome
	dmgDealt    int
	stunnedNext bool
	wasStunned  bool
}

// ResolveTurn applies the full interaction table to two simultaneous moves.
// It is pure: identical inputs always produce byte-identical results, and
// every numeric output is integral (floor rounding) and clamped to range.
func ResolveTurn(in TurnInput) TurnResult {
	a := &fighter{state: in.P1, requested: in.P1Move, wasStunned: in.P1.Stunned}
	b := &fighter{state: in.P2, requested: in.P2Move, wasStunned: in.P2.Stunned}

	payEnergy(a)
	payEnergy(b)
	classify(a, b)
	applyDamage(a, b)
	applyDamage(b, a)
	applyLifeSteal(a)
	applyLifeSteal(b)
	applySiphon(a, b)
	applySiphon(b, a)
	finalize(a)
	finalize(b)

	res := TurnResult{P1: result(a), P2: result(b)}
	if a.state.Health <= 0 || b.state.Health <= 0 {
		res.RoundOver = true
		res.Winner = judgeKO(a.state, b.state)
	}
	return res
}

// payEnergy downgrades unaffordable moves to block and settles the energy
// cost. A block (chosen or downgraded) always succeeds and grants regen.
func payEnergy(f *fighter) {
	f.move = f.requested
	cost := Cost(f.move, f.state.Modifier)
	if f.state.Energy < cost {
		f.move = MoveBlock
		cost = 0
	}
	if f.move == MoveBlock {
		f.state.Energy = clamp(f.state.Energy+BlockRegen, MaxEnergy)
		return
	}
	f.state.Energy -= cost
	f.spent = cost
}

// classify fills both fighters' roles from the interaction table:
// punch beats kick, kick beats block, block beats punch, special beats both
// punch and kick, special against block shatters the guard.
func classify(a, b *fighter) {
	if a.move == b.move {
		if a.move == MoveBlock {
			a.role, b.role = roleClash, roleClash
			return
		}
		// AdrenalineSurge breaks an otherwise-simultaneous clash in the
		// holder's favor. When both hold it, nobody has priority.
		aPrio := a.state.Modifier == ModifierAdrenalineSurge
		bPrio := b.state.Modifier == ModifierAdrenalineSurge
		switch {
		case aPrio && !bPrio:
			a.role, b.role = roleLand, roleCountered
		case bPrio && !aPrio:
			a.role, b.role = roleCountered, roleLand
		default:
			a.role, b.role = roleTrade, roleTrade
		}
		return
	}

	if a.move == MoveBlock || b.move == MoveBlock {
		atk, def := a, b
		if a.move == MoveBlock {
			atk, def = b, a
		}
		switch atk.move {
		case MovePunch:
			if atk.state.Modifier == ModifierPhantomFist {
				// Bypass is not a shatter: the blocker is staggered, the
				// guard meter is untouched, and no stun is involved.
				atk.role, def.role = roleBypass, roleCountered
			} else {
				atk.role, def.role = roleGuarded, roleBlocking
			}
		case MoveKick:
			// Kick pierces: the block fails outright.
			atk.role, def.role = roleLand, roleCountered
		case MoveSpecial:
			atk.role, def.role = roleShatterer, roleShattered
		}
		return
	}

	if beats(a.move, b.move) {
		a.role, b.role = roleLand, roleCountered
	} else {
		a.role, b.role = roleCountered, roleLand
	}
}

// beats reports whether x wins the attack cycle against y, for distinct
// non-block moves.
func beats(x, y Move) bool {
	switch x {
	case MoveSpecial:
		return true
	case MovePunch:
		return y == MoveKick
	}
	return false
}

// applyDamage resolves atk's contribution against def: damage, guard meter
// movement, and break/shatter effects.
func applyDamage(atk, def *fighter) {
	switch atk.role {
	case roleClash:
		atk.outcome = OutcomeClash
		return
	case roleCountered:
		atk.outcome = OutcomeStaggered
		return
	case roleBlocking:
		// The opposing pass may already have marked this side stunned by a
		// guard break; don't downgrade that back to guarding.
		if atk.outcome == "" {
			atk.outcome = OutcomeGuarding
		}
		return
	case roleShattered:
		atk.outcome = OutcomeShattered
		return
	}

	base := outgoing(atk, BaseDamage(atk.move))

	switch atk.role {
	case roleTrade, roleLand:
		dealt := incoming(def, base)
		def.state.Health -= dealt
		atk.dmgDealt = dealt
		atk.outcome = OutcomeHit
		pressure(atk, def)

	case roleBypass:
		dealt := incoming(def, base*5/4)
		def.state.Health -= dealt
		atk.dmgDealt = dealt
		atk.outcome = OutcomeHit
		pressure(atk, def)

	case roleShatterer:
		// Shatter: full plus bonus, guard resets, and explicitly no
		// next-turn stun — shatter and guard-break stun are mutually
		// exclusive.
		dealt := incoming(def, base*3/2)
		def.state.Health -= dealt
		def.state.Guard = 0
		atk.dmgDealt = dealt
		atk.outcome = OutcomeHit
		pressure(atk, def)

	case roleGuarded:
		gain := GuardChipGain
		if atk.state.Modifier == ModifierGuardCrusher {
			gain += GuardCrusherPressure
		}
		def.state.Guard += gain
		if def.state.Guard > GuardBreakThreshold {
			// Guard break: the stored-up pressure lands in full and the
			// defender is stunned for the next turn only.
			dealt := incoming(def, base)
			def.state.Health -= dealt
			def.state.Guard = 0
			atk.dmgDealt = dealt
			atk.outcome = OutcomeHit
			if def.state.Modifier != ModifierGhostStep {
				def.stunnedNext = true
				def.outcome = OutcomeStunned
			}
		} else {
			dealt := incoming(def, base/4)
			def.state.Health -= dealt
			atk.dmgDealt = dealt
			atk.outcome = OutcomeStaggered
		}
	}
}

// pressure applies GuardCrusher's extra meter damage on landed hits.
func pressure(atk, def *fighter) {
	if atk.state.Modifier == ModifierGuardCrusher {
		def.state.Guard += GuardCrusherPressure
	}
}

// outgoing applies the attacker-side damage modifiers.
func outgoing(f *fighter, dmg int) int {
	if f.state.Modifier == ModifierBerserkerPact {
		dmg = dmg * 3 / 2
	}
	return dmg
}

// incoming applies the defender-side damage modifiers.
func incoming(f *fighter, dmg int) int {
	if f.state.Modifier == ModifierBerserkerPact {
		dmg = dmg * 3 / 2
	}
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

func applyLifeSteal(f *fighter) {
	if f.state.Modifier == ModifierVampiricEdge && f.dmgDealt > 0 {
		f.state.Health = clamp(f.state.Health+f.dmgDealt/4, MaxHealth)
	}
}

func applySiphon(atk, def *fighter) {
	if atk.state.Modifier != ModifierEnergySiphon || atk.dmgDealt == 0 {
		return
	}
	transfer := def.spent / 2
	if transfer > def.state.Energy {
		transfer = def.state.Energy
	}
	def.state.Energy -= transfer
	atk.state.Energy = clamp(atk.state.Energy+transfer, MaxEnergy)
}

// finalize settles labels, stun flags, and range clamping for one side.
func finalize(f *fighter) {
	// GhostStep holders are never labeled as countered; the damage numbers
	// stay exactly as the table produced them.
	if f.state.Modifier == ModifierGhostStep && f.outcome == OutcomeStaggered {
		f.outcome = OutcomeHit
	}
	// A player who entered the turn stunned resolves normally but carries
	// the stunned label; the flag clears with this turn.
	if f.wasStunned {
		f.outcome = OutcomeStunned
	}
	f.state.Stunned = f.stunnedNext
	f.state.Health = clamp(f.state.Health, MaxHealth)
	f.state.Energy = clamp(f.state.Energy, MaxEnergy)
	f.state.Guard = clamp(f.state.Guard, GuardBreakThreshold)
}

func result(f *fighter) PlayerResult {
	return PlayerResult{
		Requested:   f.requested,
		Move:        f.move,
		Outcome:     f.outcome,
		DamageDealt: f.dmgDealt,
		Health:      f.state.Health,
		Energy:      f.state.Energy,
		Guard:       f.state.Guard,
		StunnedNext: f.stunnedNext,
	}
}

// judgeKO picks the round winner once at least one side is at zero health.
// If both dropped on the same turn the higher remaining value wins, broken
// by energy, then guard, then seat order.
func judgeKO(p1, p2 PlayerState) Side {
	if p1.Health > 0 && p2.Health <= 0 {
		return Side1
	}
	if p2.Health > 0 && p1.Health <= 0 {
		return Side2
	}
	return compareStates(p1, p2)
}

// JudgeStalemate decides a round that hit the turn cap without a KO.
func JudgeStalemate(p1, p2 PlayerState) Side {
	return compareStates(p1, p2)
}

func compareStates(p1, p2 PlayerState) Side {
	if p1.Health != p2.Health {
		if p1.Health > p2.Health {
			return Side1
		}
		return Side2
	}
	if p1.Energy != p2.Energy {
		if p1.Energy > p2.Energy {
			return Side1
		}
		return Side2
	}
	if p1.Guard != p2.Guard {
		if p1.Guard > p2.Guard {
			return Side1
		}
		return Side2
	}
	return Side1
}

// clamp floors at zero and caps at max.
func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
