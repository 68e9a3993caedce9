package mysql

// -----------------------------------------------------------------------------
// PROPERTIES
// -----------------------------------------------------------------------------

const upsertPropertySQL = `
INSERT INTO properties (id, address)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE address = VALUES(address)
`

const getPropertyAddressSQL = `SELECT address FROM properties WHERE id = ?`

// -----------------------------------------------------------------------------
// SLOTS
// -----------------------------------------------------------------------------

const slotColumns = `id, property_id, slot_date, start_time, end_time, booked,
  booker_name, booker_family_size, booker_contact, booker_has_application, created_at`

const insertSlotsPrefix = "INSERT INTO viewing_slots\n  (id, property_id, slot_date, start_time, end_time, booked, created_at)\nVALUES "

// The booked = 0 guard makes this the only atomic claim on a slot; callers
// must check RowsAffected.
const bookSlotSQL = `
UPDATE viewing_slots
SET booked = 1,
    booker_name = ?,
    booker_family_size = ?,
    booker_contact = ?,
    booker_has_application = ?
WHERE id = ? AND booked = 0
`

const deleteSlotSQL = `DELETE FROM viewing_slots WHERE id = ?`

const getSlotSQL = `SELECT ` + slotColumns + ` FROM viewing_slots WHERE id = ?`

const listSlotsByDateSQL = `SELECT ` + slotColumns + `
FROM viewing_slots
WHERE property_id = ? AND slot_date = ?
ORDER BY start_time`

const listSlotsSQL = `SELECT ` + slotColumns + `
FROM viewing_slots
WHERE property_id = ?
ORDER BY slot_date, start_time`

const listAvailableSlotsSQL = `SELECT ` + slotColumns + `
FROM viewing_slots
WHERE property_id = ? AND booked = 0
ORDER BY slot_date, start_time`

// -----------------------------------------------------------------------------
// APPLICATIONS
// -----------------------------------------------------------------------------

const applicationColumns = `id, property_id, property_address, applicant_name, applicant_email,
  applicant_phone, is_principal, number_of_adults, co_applicant_emails, household_id,
  documents, documents_submitted, payment_status, payment_id, payment_amount, status,
  viewing_requested, viewing_date, viewing_status, created_at, updated_at`

const insertApplicationSQL = `
INSERT INTO applications (` + applicationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Whole-record overwrite; concurrent writers are last-write-wins.
const saveApplicationSQL = `
UPDATE applications
SET applicant_name      = ?,
    applicant_phone     = ?,
    number_of_adults    = ?,
    co_applicant_emails = ?,
    household_id        = ?,
    documents           = ?,
    documents_submitted = ?,
    payment_status      = ?,
    payment_id          = ?,
    payment_amount      = ?,
    status              = ?,
    viewing_requested   = ?,
    viewing_date        = ?,
    viewing_status      = ?,
    updated_at          = ?
WHERE id = ?
`

const deleteApplicationSQL = `DELETE FROM applications WHERE id = ?`

const assignHouseholdPrefix = `
UPDATE applications
SET household_id = ?, updated_at = ?
WHERE property_id = ? AND is_principal = 0 AND applicant_email IN `

const getApplicationSQL = `SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`

const listApplicationsByPropertySQL = `SELECT ` + applicationColumns + `
FROM applications
WHERE property_id = ?
ORDER BY created_at, id`

const listHouseholdSQL = `SELECT ` + applicationColumns + `
FROM applications
WHERE property_id = ? AND household_id = ?
ORDER BY created_at, id`

const listCompletedPrincipalsSQL = `SELECT ` + applicationColumns + `
FROM applications
WHERE is_principal = 1 AND payment_status = 'completed' AND JSON_LENGTH(co_applicant_emails) > 0
ORDER BY created_at, id`

// -----------------------------------------------------------------------------
// HOUSEHOLD INDEX
// -----------------------------------------------------------------------------

const clearHouseholdMembersSQL = `DELETE FROM household_members WHERE property_id = ? AND household_id = ?`

const insertHouseholdMembersPrefix = "INSERT INTO household_members (property_id, member_email, household_id)\nVALUES "

// A member listed by a newer principal moves to that household.
const insertHouseholdMembersOnDup = "\nON DUPLICATE KEY UPDATE household_id = VALUES(household_id)"

const lookupHouseholdSQL = `SELECT household_id FROM household_members WHERE property_id = ? AND member_email = ?`
