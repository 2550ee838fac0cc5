package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"quizroyale/domain"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (repo *PostgresRepo) GetPool() *pgxpool.Pool {
	return repo.pool
}

func (repo *PostgresRepo) Close() {
	repo.pool.Close()
}

func wrap(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.DatabaseError, err)
}

// --- Profiles ---

func (repo *PostgresRepo) CreateProfile(ctx context.Context, username, avatarUrl, playerCode string, startingBalance int) (domain.Profile, error) {
	profile := domain.Profile{
		Username:   username,
		AvatarUrl:  avatarUrl,
		PlayerCode: playerCode,
		Balance:    startingBalance,
		Level:      1,
	}

	row := repo.pool.QueryRow(ctx,
		`INSERT INTO profiles(username, avatar_url, player_code, balance)
		 VALUES($1, $2, $3, $4) RETURNING id, created_at`,
		username, avatarUrl, playerCode, startingBalance)

	err := row.Scan(&profile.Id, &profile.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23505" is the PostgreSQL error code for unique_violation
			if pgErr.Code == "23505" {
				if pgErr.ConstraintName == "profiles_player_code_key" {
					return domain.Profile{}, domain.ErrDuplicatePlayerCode
				}
				return domain.Profile{}, domain.ErrDuplicateUsername
			}
		}
		return domain.Profile{}, wrap(err)
	}

	return profile, nil
}

func (repo *PostgresRepo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	profile := domain.Profile{Id: id}

	row := repo.pool.QueryRow(ctx,
		`SELECT username, avatar_url, player_code, balance, total_wins, total_games, level, created_at
		 FROM profiles WHERE id = $1`, id)

	err := row.Scan(&profile.Username, &profile.AvatarUrl, &profile.PlayerCode,
		&profile.Balance, &profile.TotalWins, &profile.TotalGames, &profile.Level, &profile.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrProfileNotFound
		}
		return domain.Profile{}, wrap(err)
	}

	return profile, nil
}

// DeductStake takes the stake out of the player's balance, or fails with
// ErrInsufficientBalance without writing anything. The balance check and
// the write are one atomic statement.
func (repo *PostgresRepo) DeductStake(ctx context.Context, userId string, amount int) error {
	if amount == 0 {
		return nil
	}

	tag, err := repo.pool.Exec(ctx,
		`UPDATE profiles SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		userId, amount)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}
	return nil
}

func (repo *PostgresRepo) CreditWinnings(ctx context.Context, userId string, amount int) error {
	if amount == 0 {
		return nil
	}
	_, err := repo.pool.Exec(ctx,
		`UPDATE profiles SET balance = balance + $2 WHERE id = $1`, userId, amount)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// BumpStats increments games played (and wins when won) and re-derives
// the level from the new games count.
func (repo *PostgresRepo) BumpStats(ctx context.Context, userId string, won bool) error {
	wins := 0
	if won {
		wins = 1
	}
	_, err := repo.pool.Exec(ctx,
		`UPDATE profiles SET
		   total_games = total_games + 1,
		   total_wins  = total_wins + $2,
		   level       = (total_games + 1) / 5 + 1
		 WHERE id = $1`, userId, wins)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// --- Rooms ---

func (repo *PostgresRepo) CreateRoom(ctx context.Context, room domain.Room) error {
	_, err := repo.pool.Exec(ctx,
		`INSERT INTO game_rooms(id, host_id, mode, status, bet_amount) VALUES($1, $2, $3, $4, $5)`,
		room.Id, room.HostId, room.Mode, room.Status, room.Stake)
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (repo *PostgresRepo) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	room := domain.Room{Id: id}
	var questionsJson []byte

	row := repo.pool.QueryRow(ctx,
		`SELECT host_id, mode, status, bet_amount, questions, created_at, started_at
		 FROM game_rooms WHERE id = $1`, id)

	err := row.Scan(&room.HostId, &room.Mode, &room.Status, &room.Stake,
		&questionsJson, &room.CreatedAt, &room.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, wrap(err)
	}

	if questionsJson != nil {
		if err := json.Unmarshal(questionsJson, &room.Questions); err != nil {
			return domain.Room{}, wrap(err)
		}
	}

	return room, nil
}

// OldestJoinableRoom returns the oldest waiting room for the mode that
// still has a free seat. Under a create/create race two rooms may exist
// for a while; the oldest-first ordering drains the spare naturally.
func (repo *PostgresRepo) OldestJoinableRoom(ctx context.Context, mode domain.GameMode, maxPlayers int) (domain.Room, error) {
	room := domain.Room{Mode: mode, Status: domain.RoomWaiting}

	row := repo.pool.QueryRow(ctx,
		`SELECT r.id, r.host_id, r.bet_amount, r.created_at
		 FROM game_rooms r
		 WHERE r.mode = $1 AND r.status = 'waiting'
		   AND (SELECT count(*) FROM room_players p WHERE p.room_id = r.id) < $2
		 ORDER BY r.created_at ASC
		 LIMIT 1`, mode, maxPlayers)

	err := row.Scan(&room.Id, &room.HostId, &room.Stake, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Room{}, domain.ErrRoomNotFound
		}
		return domain.Room{}, wrap(err)
	}

	return room, nil
}

// ClaimStart attaches the question set and flips the room to playing in
// one conditional update. It reports false when another writer already
// claimed the start, so attachment happens at most once per room.
func (repo *PostgresRepo) ClaimStart(ctx context.Context, roomId string, questions []domain.Question, startedAt time.Time) (bool, error) {
	questionsJson, err := json.Marshal(questions)
	if err != nil {
		return false, err
	}

	tag, err := repo.pool.Exec(ctx,
		`UPDATE game_rooms SET status = 'playing', questions = $2, started_at = $3
		 WHERE id = $1 AND status = 'waiting' AND questions IS NULL`,
		roomId, questionsJson, startedAt)
	if err != nil {
		return false, wrap(err)
	}

	return tag.RowsAffected() == 1, nil
}

func (repo *PostgresRepo) FinishRoom(ctx context.Context, roomId string) error {
	_, err := repo.pool.Exec(ctx,
		`UPDATE game_rooms SET status = 'finished' WHERE id = $1`, roomId)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// JoinRoom upserts membership; re-joining is a no-op.
func (repo *PostgresRepo) JoinRoom(ctx context.Context, roomId, userId string) error {
	_, err := repo.pool.Exec(ctx,
		`INSERT INTO room_players(room_id, user_id) VALUES($1, $2)
		 ON CONFLICT (room_id, user_id) DO NOTHING`, roomId, userId)
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (repo *PostgresRepo) LeaveRoom(ctx context.Context, roomId, userId string) error {
	_, err := repo.pool.Exec(ctx,
		`DELETE FROM room_players WHERE room_id = $1 AND user_id = $2`, roomId, userId)
	if err != nil {
		return wrap(err)
	}
	return nil
}

// RoomPlayers returns member profiles in join order, which is also the
// canonical seating order for a round.
func (repo *PostgresRepo) RoomPlayers(ctx context.Context, roomId string) ([]domain.Profile, error) {
	rows, err := repo.pool.Query(ctx,
		`SELECT pr.id, pr.username, pr.avatar_url, pr.player_code, pr.balance,
		        pr.total_wins, pr.total_games, pr.level, pr.created_at
		 FROM room_players rp
		 JOIN profiles pr ON pr.id = rp.user_id
		 WHERE rp.room_id = $1
		 ORDER BY rp.joined_at ASC`, roomId)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	players := make([]domain.Profile, 0, 8)
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.Id, &p.Username, &p.AvatarUrl, &p.PlayerCode, &p.Balance,
			&p.TotalWins, &p.TotalGames, &p.Level, &p.CreatedAt); err != nil {
			return nil, wrap(err)
		}
		players = append(players, p)
	}

	return players, rows.Err()
}

// --- Invites ---

func (repo *PostgresRepo) CreateInvite(ctx context.Context, roomId, fromUserId, toUserId string) (string, error) {
	var id string
	row := repo.pool.QueryRow(ctx,
		`INSERT INTO game_invites(room_id, from_user_id, to_user_id) VALUES($1, $2, $3) RETURNING id`,
		roomId, fromUserId, toUserId)
	if err := row.Scan(&id); err != nil {
		return "", wrap(err)
	}
	return id, nil
}

func (repo *PostgresRepo) GetInvite(ctx context.Context, id string) (domain.Invite, error) {
	invite := domain.Invite{Id: id}

	row := repo.pool.QueryRow(ctx,
		`SELECT i.room_id, i.from_user_id, i.to_user_id, i.status, i.created_at, r.bet_amount
		 FROM game_invites i
		 JOIN game_rooms r ON r.id = i.room_id
		 WHERE i.id = $1`, id)

	err := row.Scan(&invite.RoomId, &invite.FromUserId, &invite.ToUserId,
		&invite.Status, &invite.CreatedAt, &invite.Stake)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invite{}, domain.ErrInviteNotFound
		}
		return domain.Invite{}, wrap(err)
	}

	return invite, nil
}

func (repo *PostgresRepo) PendingInvites(ctx context.Context, userId string) ([]domain.Invite, error) {
	rows, err := repo.pool.Query(ctx,
		`SELECT i.id, i.room_id, i.from_user_id, i.status, i.created_at,
		        pr.username, pr.avatar_url, r.bet_amount
		 FROM game_invites i
		 JOIN profiles pr ON pr.id = i.from_user_id
		 JOIN game_rooms r ON r.id = i.room_id
		 WHERE i.to_user_id = $1 AND i.status = 'pending'
		 ORDER BY i.created_at ASC`, userId)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	invites := make([]domain.Invite, 0, 4)
	for rows.Next() {
		invite := domain.Invite{ToUserId: userId}
		if err := rows.Scan(&invite.Id, &invite.RoomId, &invite.FromUserId, &invite.Status,
			&invite.CreatedAt, &invite.FromUsername, &invite.FromAvatar, &invite.Stake); err != nil {
			return nil, wrap(err)
		}
		invites = append(invites, invite)
	}

	return invites, rows.Err()
}

// AnswerInvite resolves a pending invite. Invites are terminal once
// responded to, so answering twice fails.
func (repo *PostgresRepo) AnswerInvite(ctx context.Context, id string, status domain.InviteStatus) error {
	tag, err := repo.pool.Exec(ctx,
		`UPDATE game_invites SET status = $2 WHERE id = $1 AND status = 'pending'`, id, status)
	if err != nil {
		return wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInviteAlreadyAnswered
	}
	return nil
}

// --- History ---

func (repo *PostgresRepo) AppendHistory(ctx context.Context, rec domain.HistoryRecord) error {
	_, err := repo.pool.Exec(ctx,
		`INSERT INTO game_history(user_id, room_id, mode, result, correct_answers,
		                          wrong_answers, total_players, bet_amount, earnings)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.UserId, rec.RoomId, rec.Mode, rec.Result, rec.Correct,
		rec.Wrong, rec.TotalPlayers, rec.Stake, rec.Earnings)
	if err != nil {
		return wrap(err)
	}
	return nil
}

func (repo *PostgresRepo) UserHistory(ctx context.Context, userId string, limit int) ([]domain.HistoryRecord, error) {
	rows, err := repo.pool.Query(ctx,
		`SELECT id, room_id, mode, result, correct_answers, wrong_answers,
		        total_players, bet_amount, earnings, played_at
		 FROM game_history WHERE user_id = $1
		 ORDER BY played_at DESC LIMIT $2`, userId, limit)
	if err != nil {
		return nil, wrap(err)
	}
	defer rows.Close()

	records := make([]domain.HistoryRecord, 0, limit)
	for rows.Next() {
		rec := domain.HistoryRecord{UserId: userId}
		if err := rows.Scan(&rec.Id, &rec.RoomId, &rec.Mode, &rec.Result, &rec.Correct,
			&rec.Wrong, &rec.TotalPlayers, &rec.Stake, &rec.Earnings, &rec.PlayedAt); err != nil {
			return nil, wrap(err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
