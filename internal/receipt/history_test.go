package receipt

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HistoryRecorder", func() {
	var (
		db       *mockDB
		now      time.Time
		recorder *HistoryRecorder
		snapshot []State
	)

	BeforeEach(func() {
		db = &mockDB{}
		now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
		recorder = NewHistoryRecorderWithTime(db, &mockTimeSource{now: now})
		snapshot = []State{
			{ID: "001", Filename: "a.jpg", Stage: StageSuccess, Outcome: OutcomeSuccess, StoredID: "page-1", Record: defaultRecord("Pharmacy")},
			{ID: "002", Filename: "b.jpg", Stage: StageFailed, Outcome: OutcomeFailed, Error: "OCR failed: boom"},
		}
	})

	Describe("StateChanged", func() {
		It("records nothing", func() {
			recorder.StateChanged("batch-1", snapshot)
			Expect(db.entries).To(BeEmpty())
		})
	})

	Describe("BatchDone", func() {
		JustBeforeEach(func() {
			recorder.BatchDone("batch-1", snapshot)
		})

		It("records one entry per terminal item", func() {
			Expect(db.entries).To(HaveLen(2))
		})

		It("copies the extracted record onto successful entries", func() {
			entry := db.entries[0]
			Expect(entry.BatchID).To(Equal("batch-1"))
			Expect(entry.ItemID).To(Equal("001"))
			Expect(entry.Merchant).To(Equal("Pharmacy"))
			Expect(entry.Date).To(Equal("2024-01-15"))
			Expect(entry.Total).To(Equal(25.99))
			Expect(entry.StoredID).To(Equal("page-1"))
			Expect(entry.FinishedAt).To(Equal(now))
		})

		It("keeps the failure message on failed entries", func() {
			entry := db.entries[1]
			Expect(entry.Outcome).To(Equal(OutcomeFailed))
			Expect(entry.Error).To(Equal("OCR failed: boom"))
			Expect(entry.Merchant).To(BeEmpty())
		})

		When("an item is not terminal", func() {
			BeforeEach(func() {
				snapshot = append(snapshot, State{ID: "003", Stage: StagePersisting})
			})

			It("skips it", func() {
				Expect(db.entries).To(HaveLen(2))
			})
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.saveErr = errors.New("disk full")
			})

			It("does not panic and records nothing", func() {
				Expect(db.entries).To(BeEmpty())
			})
		})
	})
})
