package rinkside

// Converters between the public mirror types and their internal
// counterparts. This file is the only place that sees both sides of the
// boundary; keep every mapping here so a new field is a one-file change.

import (
	"github.com/rinkside-ai/rinkside/internal/clipindex"
	"github.com/rinkside-ai/rinkside/internal/clips"
	"github.com/rinkside-ai/rinkside/internal/config"
	"github.com/rinkside-ai/rinkside/internal/cutter"
	"github.com/rinkside-ai/rinkside/internal/model"
	"github.com/rinkside-ai/rinkside/internal/policy"
	"github.com/rinkside-ai/rinkside/internal/schemadoc"
)

func fromPublicActor(a Actor) policy.Actor {
	return policy.Actor{
		ID:      a.ID,
		Role:    a.Role,
		TeamIDs: a.TeamIDs,
	}
}

func toPublicActor(a policy.Actor) Actor {
	return Actor{
		ID:      a.ID,
		Role:    a.Role,
		TeamIDs: a.TeamIDs,
	}
}

func fromPublicConfig(c Config) config.Config {
	return config.Config{
		DatabaseURL:     c.DatabaseURL,
		WarehouseURL:    c.WarehouseURL,
		ColumnarRoot:    c.ColumnarRoot,
		CacheTTL:        c.CacheTTL,
		CacheMaxEntries: c.CacheMaxEntries,
		VideoRoot:       c.VideoRoot,
		ClipOutputRoot:  c.ClipOutputRoot,
		ClipIndexPath:   c.ClipIndexPath,
		Season:          c.Season,
		ClipPreSeconds:  c.ClipPreSeconds,
		ClipPostSeconds: c.ClipPostSeconds,
		MaxClipDuration: c.MaxClipDuration,
		CutWorkers:      c.CutWorkers,
		EnableHLS:       c.EnableHLS,
		FFmpegPath:      c.FFmpegPath,
		FFprobePath:     c.FFprobePath,
		OTELEndpoint:    c.OTELEndpoint,
		OTELInsecure:    c.OTELInsecure,
		ServiceName:     c.ServiceName,
		LogLevel:        c.LogLevel,
	}
}

func toPublicVersion(v model.SchemaVersion) SchemaVersion {
	return SchemaVersion{
		ID:          v.ID,
		Version:     v.Version,
		State:       string(v.State),
		Active:      v.Active,
		Description: v.Description,
		CreatedBy:   v.CreatedBy,
		CreatedAt:   v.CreatedAt,
		PublishedAt: v.PublishedAt,
	}
}

func toPublicVersions(versions []model.SchemaVersion) []SchemaVersion {
	out := make([]SchemaVersion, len(versions))
	for i, v := range versions {
		out[i] = toPublicVersion(v)
	}
	return out
}

func toPublicIssues(issues []schemadoc.Issue) []SchemaIssue {
	if len(issues) == 0 {
		return nil
	}
	out := make([]SchemaIssue, len(issues))
	for i, is := range issues {
		out[i] = SchemaIssue{
			Severity:   string(is.Severity),
			Path:       is.Path,
			Message:    is.Message,
			Suggestion: is.Suggestion,
		}
	}
	return out
}

func toPublicObjectType(ot model.ObjectType) ObjectType {
	props := make([]Property, len(ot.Properties))
	for i, p := range ot.Properties {
		props[i] = Property{
			Name:        p.Name,
			Type:        string(p.Type),
			Required:    p.Required,
			Enum:        p.Enum,
			Description: p.Description,
		}
	}
	pub := ObjectType{
		Name:        ot.Name,
		Description: ot.Description,
		PrimaryKey:  ot.PrimaryKey,
		Properties:  props,
		Backend:     ot.Backend(),
		PolicyRef:   ot.PolicyRef,
	}
	if ot.Resolver != nil {
		pub.BackendConfig = ot.Resolver.Config
	}
	return pub
}

func toPublicLinkType(lt model.LinkType) LinkType {
	return LinkType{
		Name:        lt.Name,
		Description: lt.Description,
		FromObject:  lt.FromObject,
		ToObject:    lt.ToObject,
		Cardinality: string(lt.Cardinality),
		FromField:   lt.Resolver.FromField,
		ToField:     lt.Resolver.ToField,
		JoinTable:   lt.Resolver.Table,
	}
}

func fromPublicSearch(p ClipSearch) clips.SearchParams {
	return clips.SearchParams{
		PlayerIDs:      p.PlayerIDs,
		PlayerNames:    p.PlayerNames,
		EventTypes:     p.EventTypes,
		Zones:          p.Zones,
		Timeframe:      clips.Timeframe(p.Timeframe),
		GameIDs:        p.GameIDs,
		Periods:        p.Periods,
		TeamCode:       p.TeamCode,
		Mode:           model.ClipMode(p.Mode),
		OnIceTeammates: p.OnIceTeammates,
		OnIceOpponents: p.OnIceOpponents,
		Limit:          p.Limit,
		Season:         p.Season,
	}
}

func toPublicSegment(s model.ClipSegment) ClipSegment {
	return ClipSegment{
		ClipID:           s.ClipID,
		SourcePath:       s.SourcePath,
		StartSeconds:     s.StartSeconds,
		EndSeconds:       s.EndSeconds,
		AbsoluteTimecode: s.AbsoluteTimecode,
		Duration:         s.Duration,
		GameID:           s.GameID,
		GameDate:         s.GameDate,
		Season:           s.Season,
		Period:           s.Period,
		Mode:             string(s.Mode),
		PlayerID:         s.PlayerID,
		PlayerName:       s.PlayerName,
		TeammateIDs:      s.TeammateIDs,
		OpponentIDs:      s.OpponentIDs,
		TeamCode:         s.TeamCode,
		OpponentCode:     s.OpponentCode,
		EventType:        s.EventType,
		Outcome:          s.Outcome,
		Zone:             s.Zone,
		Strength:         s.Strength,
	}
}

func fromPublicSegment(s ClipSegment) model.ClipSegment {
	return model.ClipSegment{
		ClipID:           s.ClipID,
		SourcePath:       s.SourcePath,
		StartSeconds:     s.StartSeconds,
		EndSeconds:       s.EndSeconds,
		AbsoluteTimecode: s.AbsoluteTimecode,
		Duration:         s.Duration,
		GameID:           s.GameID,
		GameDate:         s.GameDate,
		Season:           s.Season,
		Period:           s.Period,
		Mode:             model.ClipMode(s.Mode),
		PlayerID:         s.PlayerID,
		PlayerName:       s.PlayerName,
		TeammateIDs:      s.TeammateIDs,
		OpponentIDs:      s.OpponentIDs,
		TeamCode:         s.TeamCode,
		OpponentCode:     s.OpponentCode,
		EventType:        s.EventType,
		Outcome:          s.Outcome,
		Zone:             s.Zone,
		Strength:         s.Strength,
	}
}

func toPublicClipRecord(r model.ClipRecord) ClipRecord {
	return ClipRecord{
		ClipSegment:       toPublicSegment(r.ClipSegment),
		FilePath:          r.FilePath,
		ThumbnailPath:     r.ThumbnailPath,
		HLSPath:           r.HLSPath,
		SizeBytes:         r.SizeBytes,
		ProcessingSeconds: r.ProcessingSeconds,
		Fingerprint:       r.Fingerprint,
		Metadata:          r.Metadata,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

func toPublicCutResult(r cutter.Result) CutResult {
	return CutResult{
		ClipID:            r.ClipID,
		Fingerprint:       r.Fingerprint,
		FilePath:          r.FilePath,
		ThumbnailPath:     r.ThumbnailPath,
		HLSPath:           r.HLSPath,
		StartSeconds:      r.StartSeconds,
		EndSeconds:        r.EndSeconds,
		Duration:          r.Duration,
		SizeBytes:         r.SizeBytes,
		Strategy:          string(r.Strategy),
		CacheHit:          r.CacheHit,
		Success:           r.Success,
		Error:             r.Error,
		ProcessingSeconds: r.ProcessingSeconds,
	}
}

func fromPublicClipQuery(q ClipQuery) clipindex.QueryFilter {
	return clipindex.QueryFilter{
		PlayerIDs:  q.PlayerIDs,
		GameIDs:    q.GameIDs,
		EventTypes: q.EventTypes,
		TeamCodes:  q.TeamCodes,
		Limit:      q.Limit,
	}
}

func toPublicStats(s clipindex.Stats) ClipIndexStats {
	return ClipIndexStats{
		TotalClips:           s.TotalClips,
		TotalSizeBytes:       s.TotalSizeBytes,
		TotalDurationSeconds: s.TotalDurationSeconds,
		UniquePlayers:        s.UniquePlayers,
		UniqueGames:          s.UniqueGames,
		CacheHits:            s.CacheHits,
		CacheHitRate:         s.CacheHitRate,
	}
}
