package escrow

import (
	"errors"
	"testing"

	"github.com/kevredlabs/ro-sham-bo/pkg/runtime"
	"github.com/kevredlabs/ro-sham-bo/pkg/types"
)

const testStake = uint64(1_000_000_000)

var recordRent = uint64(types.RentExemptMinimum(RecordSize))

func testPubkey(b byte) types.Pubkey {
	var pk types.Pubkey
	for i := range pk {
		pk[i] = b
	}
	return pk
}

func testGameID(b byte) types.GameID {
	var id types.GameID
	for i := range id {
		id[i] = b
	}
	return id
}

func newAccount(pubkey types.Pubkey, lamports uint64, owner types.Pubkey, signer, writable bool) *runtime.AccountInfo {
	balance := lamports
	return &runtime.AccountInfo{
		Pubkey:     pubkey,
		Lamports:   &balance,
		Owner:      owner,
		IsSigner:   signer,
		IsWritable: writable,
	}
}

func execute(t *testing.T, p *Program, accounts []*runtime.AccountInfo, data []byte) error {
	t.Helper()
	ctx := runtime.NewExecutionContext(p.ProgramID, accounts, data)
	return p.Execute(ctx, &types.Instruction{ProgramID: p.ProgramID, Data: data})
}

// gameFixture is a created game with all participating accounts.
type gameFixture struct {
	program   *Program
	creator   *runtime.AccountInfo
	record    *runtime.AccountInfo
	vault     *runtime.AccountInfo
	gameID    types.GameID
	system    *runtime.AccountInfo
	authority types.Pubkey
	treasury  types.Pubkey
}

func createGame(t *testing.T, stake uint64) *gameFixture {
	t.Helper()

	authority := testPubkey(0xaa)
	treasury := testPubkey(0xbb)
	p := New(authority, treasury)

	creatorKey := testPubkey(1)
	gameID := testGameID(7)

	recordKey, _, err := DeriveRecordAddress(p.ProgramID, creatorKey, gameID)
	if err != nil {
		t.Fatalf("DeriveRecordAddress failed: %v", err)
	}
	vaultKey, _, err := DeriveVaultAddress(p.ProgramID, recordKey)
	if err != nil {
		t.Fatalf("DeriveVaultAddress failed: %v", err)
	}

	fx := &gameFixture{
		program:   p,
		creator:   newAccount(creatorKey, 10_000_000_000, types.SystemProgramID, true, true),
		record:    newAccount(recordKey, 0, types.SystemProgramID, false, true),
		vault:     newAccount(vaultKey, 0, types.SystemProgramID, false, true),
		gameID:    gameID,
		system:    newAccount(types.SystemProgramID, 0, types.SystemProgramID, false, false),
		authority: authority,
		treasury:  treasury,
	}

	inst := CreateGameInstruction{GameID: gameID, Amount: stake}
	accounts := []*runtime.AccountInfo{fx.creator, fx.record, fx.vault, fx.system}
	if err := execute(t, p, accounts, inst.Encode()); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	return fx
}

func (fx *gameFixture) join(t *testing.T, joiner *runtime.AccountInfo) error {
	t.Helper()
	accounts := []*runtime.AccountInfo{joiner, fx.record, fx.vault}
	return execute(t, fx.program, accounts, discriminatorOnly(JoinGameDiscriminator))
}

func (fx *gameFixture) state(t *testing.T) *GameEscrow {
	t.Helper()
	state, err := DeserializeRecord(fx.record.Data)
	if err != nil {
		t.Fatalf("record does not decode: %v", err)
	}
	return state
}

func TestCreateGame(t *testing.T) {
	fx := createGame(t, testStake)

	state := fx.state(t)
	if state.Status != StatusCreated {
		t.Errorf("status = %v, want created", state.Status)
	}
	if state.Creator != fx.creator.Pubkey {
		t.Error("creator mismatch")
	}
	if state.GameID != fx.gameID {
		t.Error("game id mismatch")
	}
	if state.AmountPerPlayer != testStake {
		t.Errorf("stake = %d, want %d", state.AmountPerPlayer, testStake)
	}
	if *fx.vault.Lamports != testStake {
		t.Errorf("vault = %d, want %d", *fx.vault.Lamports, testStake)
	}
	if *fx.creator.Lamports != 10_000_000_000-testStake-recordRent {
		t.Errorf("creator = %d, want stake and rent debited", *fx.creator.Lamports)
	}
	if fx.record.Owner != fx.program.ProgramID {
		t.Error("record should be program owned")
	}
}

func TestCreateGame_ZeroAmount(t *testing.T) {
	p := New(testPubkey(0xaa), testPubkey(0xbb))
	creator := newAccount(testPubkey(1), 10_000_000_000, types.SystemProgramID, true, true)
	gameID := testGameID(7)

	recordKey, _, _ := DeriveRecordAddress(p.ProgramID, creator.Pubkey, gameID)
	vaultKey, _, _ := DeriveVaultAddress(p.ProgramID, recordKey)
	record := newAccount(recordKey, 0, types.SystemProgramID, false, true)
	vault := newAccount(vaultKey, 0, types.SystemProgramID, false, true)
	system := newAccount(types.SystemProgramID, 0, types.SystemProgramID, false, false)

	inst := CreateGameInstruction{GameID: gameID, Amount: 0}
	err := execute(t, p, []*runtime.AccountInfo{creator, record, vault, system}, inst.Encode())
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("err = %v, want ErrInvalidAmount", err)
	}
	if *record.Lamports != 0 || len(record.Data) != 0 {
		t.Error("no record should be allocated")
	}
	if *creator.Lamports != 10_000_000_000 {
		t.Error("creator balance should be untouched")
	}
}

func TestCreateGame_DuplicateID(t *testing.T) {
	fx := createGame(t, testStake)

	inst := CreateGameInstruction{GameID: fx.gameID, Amount: testStake}
	accounts := []*runtime.AccountInfo{fx.creator, fx.record, fx.vault, fx.system}
	err := execute(t, fx.program, accounts, inst.Encode())
	if !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}

	// first game unaffected
	if fx.state(t).AmountPerPlayer != testStake {
		t.Error("original record should be unchanged")
	}
	if *fx.vault.Lamports != testStake {
		t.Error("vault should still hold exactly one stake")
	}
}

func TestCreateGame_WrongVaultAddress(t *testing.T) {
	p := New(testPubkey(0xaa), testPubkey(0xbb))
	creator := newAccount(testPubkey(1), 10_000_000_000, types.SystemProgramID, true, true)
	gameID := testGameID(7)

	recordKey, _, _ := DeriveRecordAddress(p.ProgramID, creator.Pubkey, gameID)
	record := newAccount(recordKey, 0, types.SystemProgramID, false, true)
	bogusVault := newAccount(testPubkey(0xee), 0, types.SystemProgramID, false, true)
	system := newAccount(types.SystemProgramID, 0, types.SystemProgramID, false, false)

	inst := CreateGameInstruction{GameID: gameID, Amount: testStake}
	err := execute(t, p, []*runtime.AccountInfo{creator, record, bogusVault, system}, inst.Encode())
	if !errors.Is(err, ErrAddressMismatch) {
		t.Errorf("err = %v, want ErrAddressMismatch", err)
	}
}

func TestJoinGame(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)

	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	state := fx.state(t)
	if state.Status != StatusJoined {
		t.Errorf("status = %v, want joined", state.Status)
	}
	if state.Joiner != joiner.Pubkey {
		t.Error("joiner mismatch")
	}
	if *fx.vault.Lamports != 2*testStake {
		t.Errorf("vault = %d, want %d", *fx.vault.Lamports, 2*testStake)
	}
	if *joiner.Lamports != 5_000_000_000-testStake {
		t.Error("joiner stake should be debited")
	}
}

func TestJoinGame_AlreadyJoined(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	latecomer := newAccount(testPubkey(3), 5_000_000_000, types.SystemProgramID, true, true)
	err := fx.join(t, latecomer)
	if !errors.Is(err, ErrJoinerAlreadySet) {
		t.Errorf("err = %v, want ErrJoinerAlreadySet", err)
	}
	if *fx.vault.Lamports != 2*testStake {
		t.Error("vault should be unchanged")
	}
	if fx.state(t).Joiner != joiner.Pubkey {
		t.Error("joiner should not be reassigned")
	}
}

func (fx *gameFixture) resolve(t *testing.T, authority *runtime.AccountInfo, winner types.Pubkey, winnerDest, creator, treasury *runtime.AccountInfo) error {
	t.Helper()
	inst := ResolveInstruction{Winner: winner}
	accounts := []*runtime.AccountInfo{authority, fx.record, fx.vault, winnerDest, creator, treasury}
	return execute(t, fx.program, accounts, inst.Encode())
}

func TestResolve_WinnerTakesPot(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)
	creatorBefore := *fx.creator.Lamports
	joinerBefore := *joiner.Lamports

	if err := fx.resolve(t, authority, joiner.Pubkey, joiner, fx.creator, treasury); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if *treasury.Lamports != 60_000_000 {
		t.Errorf("treasury fee = %d, want 60000000", *treasury.Lamports)
	}
	if *joiner.Lamports != joinerBefore+1_940_000_000 {
		t.Errorf("winner payout = %d, want 1940000000", *joiner.Lamports-joinerBefore)
	}
	if *fx.creator.Lamports != creatorBefore+recordRent {
		t.Error("creator should get the record rent back")
	}
	if *fx.vault.Lamports != 0 {
		t.Errorf("vault = %d, want 0", *fx.vault.Lamports)
	}
	if !fx.record.IsEmpty() {
		t.Error("record should be destroyed")
	}
}

func TestResolve_SweepsDonatedLamports(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// Lamports sent straight to the vault address, outside the protocol.
	*fx.vault.Lamports += 17

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)
	joinerBefore := *joiner.Lamports

	if err := fx.resolve(t, authority, joiner.Pubkey, joiner, fx.creator, treasury); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if *fx.vault.Lamports != 0 {
		t.Errorf("vault = %d, want 0 after settlement", *fx.vault.Lamports)
	}
	if *joiner.Lamports != joinerBefore+1_940_000_000+17 {
		t.Errorf("winner received %d, want payout plus the donated lamports", *joiner.Lamports-joinerBefore)
	}
	if *treasury.Lamports != 60_000_000 {
		t.Error("fee should be computed from the pot, not the vault balance")
	}
}

func TestResolve_Unauthorized(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	impostor := newAccount(testPubkey(0xcc), 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)

	err := fx.resolve(t, impostor, joiner.Pubkey, joiner, fx.creator, treasury)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if *fx.vault.Lamports != 2*testStake {
		t.Error("vault should be unchanged")
	}
}

func TestResolve_WinnerNotParticipant(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)
	outsider := newAccount(testPubkey(0xdd), 0, types.SystemProgramID, false, true)

	err := fx.resolve(t, authority, outsider.Pubkey, outsider, fx.creator, treasury)
	if !errors.Is(err, ErrInvalidWinner) {
		t.Errorf("err = %v, want ErrInvalidWinner", err)
	}
	if *fx.vault.Lamports != 2*testStake {
		t.Error("vault should be unchanged")
	}
	if fx.record.IsEmpty() {
		t.Error("record should still exist")
	}
}

func TestResolve_DestinationMismatch(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)
	other := newAccount(testPubkey(0xdd), 0, types.SystemProgramID, false, true)

	// winner identity is valid but the destination account is not theirs
	err := fx.resolve(t, authority, joiner.Pubkey, other, fx.creator, treasury)
	if !errors.Is(err, ErrInvalidWinner) {
		t.Errorf("err = %v, want ErrInvalidWinner", err)
	}
}

func TestResolve_BeforeJoin(t *testing.T) {
	fx := createGame(t, testStake)

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)

	err := fx.resolve(t, authority, fx.creator.Pubkey, fx.creator, fx.creator, treasury)
	if !errors.Is(err, ErrNoJoiner) {
		t.Errorf("err = %v, want ErrNoJoiner", err)
	}
}

func TestResolve_WrongTreasury(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	bogusTreasury := newAccount(testPubkey(0xef), 0, types.SystemProgramID, false, true)

	err := fx.resolve(t, authority, joiner.Pubkey, joiner, fx.creator, bogusTreasury)
	if !errors.Is(err, ErrAddressMismatch) {
		t.Errorf("err = %v, want ErrAddressMismatch", err)
	}
}

func (fx *gameFixture) cancel(t *testing.T, creator *runtime.AccountInfo) error {
	t.Helper()
	accounts := []*runtime.AccountInfo{creator, fx.record, fx.vault}
	return execute(t, fx.program, accounts, discriminatorOnly(CancelDiscriminator))
}

func TestCancel(t *testing.T) {
	fx := createGame(t, testStake)
	before := *fx.creator.Lamports

	if err := fx.cancel(t, fx.creator); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if *fx.creator.Lamports != before+testStake+recordRent {
		t.Error("creator should get stake and rent back")
	}
	if *fx.vault.Lamports != 0 {
		t.Error("vault should be drained")
	}
	if !fx.record.IsEmpty() {
		t.Error("record should be destroyed")
	}
}

func TestCancel_AfterJoin(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	err := fx.cancel(t, fx.creator)
	if !errors.Is(err, ErrJoinerAlreadySet) {
		t.Errorf("err = %v, want ErrJoinerAlreadySet", err)
	}
	if *fx.vault.Lamports != 2*testStake {
		t.Error("vault should be unchanged")
	}
}

func TestCancel_NotCreator(t *testing.T) {
	fx := createGame(t, testStake)
	stranger := newAccount(testPubkey(9), 1_000_000, types.SystemProgramID, true, true)

	err := fx.cancel(t, stranger)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	if fx.record.IsEmpty() {
		t.Error("record should still exist")
	}
}

func (fx *gameFixture) refund(t *testing.T, authority, creator, joiner *runtime.AccountInfo) error {
	t.Helper()
	accounts := []*runtime.AccountInfo{authority, fx.record, fx.vault, creator, joiner}
	return execute(t, fx.program, accounts, discriminatorOnly(RefundDiscriminator))
}

func TestRefund(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	creatorBefore := *fx.creator.Lamports
	joinerBefore := *joiner.Lamports

	if err := fx.refund(t, authority, fx.creator, joiner); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if *fx.creator.Lamports != creatorBefore+testStake+recordRent {
		t.Error("creator should get stake and rent back")
	}
	if *joiner.Lamports != joinerBefore+testStake {
		t.Error("joiner should get exactly the stake back, no fee")
	}
	if *fx.vault.Lamports != 0 {
		t.Error("vault should be drained")
	}
	if !fx.record.IsEmpty() {
		t.Error("record should be destroyed")
	}
}

func TestRefund_SweepsDonatedLamports(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	// Lamports sent straight to the vault address, outside the protocol.
	*fx.vault.Lamports += 5

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	creatorBefore := *fx.creator.Lamports
	joinerBefore := *joiner.Lamports

	if err := fx.refund(t, authority, fx.creator, joiner); err != nil {
		t.Fatalf("refund failed: %v", err)
	}

	if *fx.vault.Lamports != 0 {
		t.Errorf("vault = %d, want 0 after refund", *fx.vault.Lamports)
	}
	if *joiner.Lamports != joinerBefore+testStake {
		t.Error("joiner should get exactly the stake back")
	}
	if *fx.creator.Lamports != creatorBefore+testStake+recordRent+5 {
		t.Errorf("creator received %d, want stake, rent, and the donated lamports", *fx.creator.Lamports-creatorBefore)
	}
}

func TestRefund_BeforeJoin(t *testing.T) {
	fx := createGame(t, testStake)

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	joiner := newAccount(testPubkey(2), 0, types.SystemProgramID, false, true)

	err := fx.refund(t, authority, fx.creator, joiner)
	if !errors.Is(err, ErrNoJoiner) {
		t.Errorf("err = %v, want ErrNoJoiner", err)
	}
}

func TestRefund_Unauthorized(t *testing.T) {
	fx := createGame(t, testStake)
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	impostor := newAccount(testPubkey(0xcc), 0, types.SystemProgramID, true, false)
	err := fx.refund(t, impostor, fx.creator, joiner)
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
}

func TestOperationsAfterDestruction(t *testing.T) {
	fx := createGame(t, testStake)
	if err := fx.cancel(t, fx.creator); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// record is gone: every further operation must fail, never silently succeed
	joiner := newAccount(testPubkey(2), 5_000_000_000, types.SystemProgramID, true, true)
	if err := fx.join(t, joiner); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("join after destroy: err = %v, want ErrRecordNotFound", err)
	}
	if err := fx.cancel(t, fx.creator); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("cancel after destroy: err = %v, want ErrRecordNotFound", err)
	}

	authority := newAccount(fx.authority, 0, types.SystemProgramID, true, false)
	treasury := newAccount(fx.treasury, 0, types.SystemProgramID, false, true)
	if err := fx.resolve(t, authority, fx.creator.Pubkey, fx.creator, fx.creator, treasury); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("resolve after destroy: err = %v, want ErrRecordNotFound", err)
	}
}

func TestSelfPlay(t *testing.T) {
	fx := createGame(t, testStake)

	// the creator joining their own game is allowed
	if err := fx.join(t, fx.creator); err != nil {
		t.Fatalf("self join failed: %v", err)
	}
	state := fx.state(t)
	if state.Joiner != fx.creator.Pubkey {
		t.Error("creator should be recorded as joiner")
	}
	if *fx.vault.Lamports != 2*testStake {
		t.Error("vault should hold both stakes")
	}
}

func TestUnknownDiscriminator(t *testing.T) {
	p := New(testPubkey(0xaa), testPubkey(0xbb))
	data := []byte{9, 9, 9, 9, 9, 9, 9, 9}
	err := execute(t, p, nil, data)
	if !errors.Is(err, ErrUnknownInstruction) {
		t.Errorf("err = %v, want ErrUnknownInstruction", err)
	}
}
