package duel

// DecideResult splits participants into winners and losers. Fallen wizards
// lose. Among the survivors (or everyone, when nobody survived) the top
// score wins; when every wizard in that pool shares the top score the duel
// is a draw and the tied wizards appear in both sets.
func DecideResult(d *Duel) (winners, losers []string) {
	pool := d.LivingWizards()
	for _, w := range d.ParticipantWizards {
		if d.Vitality[w] <= 0 && len(pool) > 0 {
			losers = append(losers, w)
		}
	}
	if len(pool) == 0 {
		pool = append(pool, d.ParticipantWizards...)
	}
	best := -1
	for _, w := range pool {
		if d.Score[w] > best {
			best = d.Score[w]
		}
	}
	for _, w := range pool {
		if d.Score[w] == best {
			winners = append(winners, w)
		} else {
			losers = append(losers, w)
		}
	}
	if len(winners) > 1 && len(winners) == len(pool) {
		losers = append(losers, winners...)
	}
	return winners, losers
}
