package fill_freed_slot

import (
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
)

// eligibleCandidates отбирает кандидатов, совместимых со слотом.
// Порядок входного списка (priority DESC, created_at ASC) сохраняется.
//
// Кандидат проходит, если у него есть контакт для уведомления и его
// предпочтения по специалисту, дате и времени суток совместимы со
// слотом. Совпадение даты и time-of-day bucket считается в локальном
// времени компании.
func eligibleCandidates(entries []*domain.WaitlistEntry, slot *domain.FreedSlot, loc *time.Location) []*domain.WaitlistEntry {
	localStart := slot.StartAt.In(loc)
	bucket := domain.TimeOfDayBucket(localStart.Hour())

	eligible := make([]*domain.WaitlistEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.HasContact() {
			continue
		}
		if !entry.AcceptsSpecialist(slot.SpecialistID) {
			continue
		}
		if !entry.AcceptsDate(localStart) {
			continue
		}
		if !entry.AcceptsBucket(bucket) {
			continue
		}
		eligible = append(eligible, entry)
	}

	return eligible
}

// hasEmail определяет предпочтительный канал уведомления:
// email при наличии адреса, иначе SMS
func hasEmail(entry *domain.WaitlistEntry) bool {
	return entry.ClientEmail != nil && *entry.ClientEmail != ""
}
